// Package scheduler runs the bot's timed jobs on gocron: the daily summary at
// a local wall-clock time and periodic housekeeping.
//
// Jobs run in singleton mode, so a slow run is never overlapped by the next
// one. With a GORM-backed distributed locker only one replica executes each
// run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gormlock "github.com/go-co-op/gocron-gorm-lock/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownJob is returned for a job name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// TaskFunc is the body of a job.
type TaskFunc func(ctx context.Context) error

// Scheduler owns a gocron scheduler and its named jobs.
type Scheduler struct {
	s    gocron.Scheduler
	loc  *time.Location
	log  zerolog.Logger
	jobs map[string]gocron.Job

	mu      sync.Mutex
	started bool
}

// New creates a scheduler evaluating wall-clock times in loc.
func New(loc *time.Location, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s, err := gocron.NewScheduler(append([]gocron.SchedulerOption{gocron.WithLocation(loc)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		s:    s,
		loc:  loc,
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]gocron.Job),
	}, nil
}

// NewWithGORMLocker creates a scheduler whose runs are coordinated through
// a lock table in db, so that only one process executes each run.
func NewWithGORMLocker(ctx context.Context, db *gorm.DB, loc *time.Location) (*Scheduler, error) {
	if err := db.WithContext(ctx).AutoMigrate(gormlock.CronJobLock{}); err != nil {
		return nil, fmt.Errorf("migrate cron lock table: %w", err)
	}
	worker := uuid.NewString()
	locker, err := gormlock.NewGormLocker(db, worker, gormlock.WithDefaultJobIdentifier(time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("create gorm locker: %w", err)
	}
	s, err := New(loc, gocron.WithDistributedLocker(locker))
	if err != nil {
		return nil, err
	}
	s.log = s.log.With().Str("worker", worker).Logger()
	return s, nil
}

// Daily registers fn to run every day at hour:minute local time.
func (s *Scheduler) Daily(name string, hour, minute int, fn TaskFunc) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("job %s: invalid time %02d:%02d", name, hour, minute)
	}
	def := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0)))
	return s.add(name, def, fn)
}

// Every registers fn to run at a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	return s.add(name, gocron.DurationJob(interval), fn)
}

func (s *Scheduler) add(name string, def gocron.JobDefinition, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	job, err := s.s.NewJob(def,
		gocron.NewTask(s.runner(name, fn)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create job %s: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

func (s *Scheduler) runner(name string, fn TaskFunc) func(ctx context.Context) {
	return func(ctx context.Context) {
		ctx, span := otel.Tracer("scheduler").Start(ctx, "job "+name,
			trace.WithAttributes(attribute.String("job.name", name)),
		)
		defer span.End()

		logger := s.log.With().Str("job", name).Logger()
		ctx = logger.WithContext(ctx)
		start := time.Now()
		if err := fn(ctx); err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Dur("took", time.Since(start)).Msg("job failed")
			return
		}
		logger.Debug().Dur("took", time.Since(start)).Msg("job done")
	}
}

// Start begins executing jobs. Calling it again is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn().Msg("scheduler already started")
		return
	}
	s.s.Start()
	s.started = true
	for name, job := range s.jobs {
		next, _ := job.NextRun()
		s.log.Info().Str("job", name).Time("next_run", next.In(s.loc)).Msg("job scheduled")
	}
}

// Stop shuts the scheduler down, waiting for running jobs. The scheduler
// cannot be restarted afterwards.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	if err := s.s.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.started = false
	return nil
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	job, err := s.job(name)
	if err != nil {
		return time.Time{}, err
	}
	return job.NextRun()
}

// RunNow triggers the named job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	job, err := s.job(name)
	if err != nil {
		return err
	}
	return job.RunNow()
}

func (s *Scheduler) job(name string) (gocron.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job, nil
}
