package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const jobTimeout = 30 * time.Second

// Scheduler runs background jobs on cron expressions, next to the poll loop.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *zap.SugaredLogger
}

// New creates a new Scheduler evaluating cron expressions in loc.
func New(loc *time.Location, logger *zap.SugaredLogger) *Scheduler {
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger,
	}
}

// AddCron registers job under a five-field cron expression.
// Each run gets its own bounded context.
func (s *Scheduler) AddCron(name, expr string, job func(ctx context.Context)) error {
	_, err := s.scheduler.Cron(expr).Do(func() {
		s.logger.Debugw("scheduler: running job", "job", name)

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		job(ctx)
		s.logger.Debugw("scheduler: completed job", "job", name)
	})
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", name, expr, err)
	}
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}

// Start starts the underlying scheduler if any job is registered.
func (s *Scheduler) Start() {
	if s.scheduler.Len() == 0 {
		s.logger.Debugw("scheduler: no jobs configured; nothing to schedule")
		return
	}
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
