package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	sqlite "github.com/glebarez/sqlite"
	gormlock "github.com/go-co-op/gocron-gorm-lock/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestDaily_NextRunAtLocalTime(t *testing.T) {
	loc := chicago(t)
	s, err := New(loc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if err := s.Daily("summary", 9, 30, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Daily: %v", err)
	}
	s.Start()
	s.Start() // guarded

	next, err := s.NextRun("summary")
	if err != nil {
		t.Fatalf("NextRun: %v", err)
	}
	local := next.In(loc)
	if local.Hour() != 9 || local.Minute() != 30 || local.Second() != 0 {
		t.Fatalf("next run = %v; want 09:30 local", local)
	}
	if !next.After(time.Now()) || next.Sub(time.Now()) > 25*time.Hour {
		t.Fatalf("next run %v not within the coming day", next)
	}
}

func TestDaily_Validation(t *testing.T) {
	s, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	noop := func(context.Context) error { return nil }
	for _, hm := range [][2]int{{24, 0}, {-1, 0}, {9, 60}} {
		if err := s.Daily("x", hm[0], hm[1], noop); err == nil {
			t.Fatalf("expected error for %02d:%02d", hm[0], hm[1])
		}
	}
	if err := s.Every("y", 0, noop); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if err := s.Daily("dup", 1, 0, noop); err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if err := s.Daily("dup", 2, 0, noop); err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestRunNow_ExecutesTaskWithContext(t *testing.T) {
	s, err := New(time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	ran := make(chan error, 2)
	err = s.Every("purge", time.Hour, func(ctx context.Context) error {
		ran <- ctx.Err()
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	s.Start()
	if err := s.RunNow("purge"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	select {
	case ctxErr := <-ran:
		if ctxErr != nil {
			t.Fatalf("task context already done: %v", ctxErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("task did not run")
	}
}

func TestUnknownJob(t *testing.T) {
	s, err := New(time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.NextRun("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("NextRun = %v; want ErrUnknownJob", err)
	}
	if err := s.RunNow("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("RunNow = %v; want ErrUnknownJob", err)
	}
}

func TestNewWithGORMLocker_MigratesLockTable(t *testing.T) {
	dsn := fmt.Sprintf("file:sched_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewWithGORMLocker(context.Background(), db, time.UTC)
	if err != nil {
		t.Fatalf("NewWithGORMLocker: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	if !db.Migrator().HasTable(&gormlock.CronJobLock{}) {
		t.Fatalf("expected cron job lock table")
	}
}
