package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

const TriggerSchedule = "schedule"

// Scheduler wraps a gocron scheduler running the synchronization periodically.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    *Runner
}

func NewScheduler(runner *Runner) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, runner: runner}, nil
}

// Every schedules a run each interval. With immediate set the first run starts as
// soon as the scheduler does. Overlapping executions are rescheduled by gocron
// rather than queued.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, immediate bool) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("watch interval must be positive, got %s", interval)
	}
	opts := []gocron.JobOption{
		gocron.WithName("depsync-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediate {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { _ = s.runner.Trigger(ctx, TriggerSchedule) }),
		opts...,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic sync job: %w", err)
	}
	slog.Info("Periodic sync scheduled", logfields.Duration(interval), slog.String("job_id", job.ID().String()))
	return job.ID().String(), nil
}

func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
