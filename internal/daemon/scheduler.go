package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/bakery/internal/bakery"
	"git.home.luguber.info/inful/bakery/internal/logfields"
)

// Scheduler wraps gocron for periodic rebuilds.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    Runner
}

// Runner is the slice of the run orchestrator the scheduler needs.
type Runner interface {
	Run(ctx context.Context, action bakery.Action, trigger string, emit bakery.EmitFunc) *bakery.Result
}

// NewScheduler creates a scheduler instance.
func NewScheduler(runner Runner) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, runner: runner}, nil
}

// SchedulePeriodicRun registers a periodic run of the given action.
func (s *Scheduler) SchedulePeriodicRun(interval time.Duration, action bakery.Action) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.executeRun, action),
		gocron.WithName(fmt.Sprintf("%s-schedule", action)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic run job: %w", err)
	}
	return job.ID().String(), nil
}

// executeRun is called by gocron on each tick. Run outcomes are already
// logged and recorded by the runner; scheduled failures are not fatal.
func (s *Scheduler) executeRun(action bakery.Action) {
	slog.Info("Executing scheduled run", logfields.Action(string(action)))
	result := s.runner.Run(context.Background(), action, bakery.TriggerSchedule, nil)
	if !result.Success {
		slog.Warn("Scheduled run failed",
			logfields.RunID(result.RunID), logfields.Action(string(action)),
			"message", result.Message)
	}
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
