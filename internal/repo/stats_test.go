package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/sales-leaderboard-bot/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: utcNow,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// seedSale inserts a sale with explicit timestamps.
func seedSale(t *testing.T, db *gorm.DB, msg, user, amount string, at time.Time) *domain.Sale {
	t.Helper()
	s := &domain.Sale{
		CommunityID: "g1",
		ChannelID:   "c1",
		MessageID:   msg,
		UserID:      user,
		Amount:      decimal.RequireFromString(amount),
		RecordedAt:  at.UTC(),
		UpdatedAt:   at.UTC(),
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("seed %s: %v", msg, err)
	}
	return s
}

func TestSalesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	now := time.Now().UTC()
	if _, _, err := SalesStats(context.Background(), db, now.Add(-time.Hour), now); err == nil {
		t.Fatalf("expected error due to missing sales table")
	}
}

func TestSalesStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, &domain.Sale{})
	now := time.Now().UTC()
	count, maxAt, err := SalesStats(context.Background(), db, now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("SalesStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestSalesStats_Success_WindowAndMax(t *testing.T) {
	db := newTestDB(t, &domain.Sale{})

	start := time.Date(2025, 4, 1, 5, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	t1 := start.Add(time.Hour)
	t2 := start.Add(3 * time.Hour) // max inside the window
	seedSale(t, db, "m1", "u1", "10", t1)
	seedSale(t, db, "m2", "u2", "20", t2)
	seedSale(t, db, "m3", "u1", "30", end) // excluded: end is exclusive

	count, maxAt, err := SalesStats(context.Background(), db, start, end)
	if err != nil {
		t.Fatalf("SalesStats error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("expected maxUpdatedAt %v, got %v", t2, maxAt)
	}
}

// Force the second query (SELECT updated_at ...) to fail by renaming the column.
func TestSalesStats_SelectLatest_ErrorPath(t *testing.T) {
	db := newTestDB(t, &domain.Sale{})
	now := time.Now().UTC()
	seedSale(t, db, "mx", "uerr", "1", now)

	if err := db.Exec(`ALTER TABLE sales RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
		t.Fatalf("rename column: %v", err)
	}
	if _, _, err := SalesStats(context.Background(), db, now.Add(-time.Hour), now.Add(time.Hour)); err == nil {
		t.Fatalf("expected error from latest-updated select after column rename")
	}
}
