// Package scheduler triggers periodic pipeline runs over a rolling window.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// Runner executes one pipeline cycle over a date range.
type Runner interface {
	Run(ctx context.Context, r domain.DateRange) error
}

// Scheduler re-runs the pipeline every interval, each time covering the
// trailing windowDays ending today (UTC).
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	windowDays int
	runTimeout time.Duration
	logger     *slog.Logger
}

// New creates a Scheduler. windowDays <= 0 defaults to 7.
func New(runner Runner, interval time.Duration, windowDays int, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		runner:     runner,
		interval:   interval,
		windowDays: windowDays,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.runJob); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval_minutes", minutes, "window_days", s.windowDays)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runJob() {
	r := s.window(domain.Now())

	ctx := context.Background()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.logger.Info("scheduled run starting", "range", r.String())
	if err := s.runner.Run(ctx, r); err != nil {
		s.logger.Error("scheduled run failed", "range", r.String(), "error", err)
	}
}

// window returns the closed interval of windowDays calendar days ending on
// the UTC day of now.
func (s *Scheduler) window(now time.Time) domain.DateRange {
	end := now.UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -(s.windowDays - 1))
	return domain.DateRange{Start: start, End: end}
}
