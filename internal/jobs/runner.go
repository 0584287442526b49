// Package jobs runs the device's recurring background work on a shared
// gocron scheduler. Jobs are registered before Start and run until Shutdown.
package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Runner owns the scheduler and the jobs registered on it.
type Runner struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

func NewRunner(logger *slog.Logger) (*Runner, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create job scheduler: %w", err)
	}
	return &Runner{scheduler: scheduler, logger: logger}, nil
}

// Every registers fn to run at the given interval. Panics inside fn are
// logged rather than allowed to kill the scheduler goroutine.
func (r *Runner) Every(name string, interval time.Duration, fn func()) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("job panicked", "job", name, "panic", rec)
				}
			}()
			fn()
		}),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	return nil
}

// Daily registers fn to run once a day at the given UTC hour.
func (r *Runner) Daily(name string, hour uint, fn func()) error {
	_, err := r.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, 0, 0))),
		gocron.NewTask(fn),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	return nil
}

func (r *Runner) Start() {
	r.scheduler.Start()
}

func (r *Runner) Shutdown() error {
	return r.scheduler.Shutdown()
}
