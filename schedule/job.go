package schedule

import (
	"context"
	"log/slog"
	"time"
)

// RunFunc is called on every scheduled activation.
type RunFunc func(ctx context.Context) error

// Job calls a RunFunc according to a schedule until its context is cancelled.
type Job struct {
	name     string
	schedule *Schedule
	run      RunFunc
	logger   *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewJob creates a job named name. Use Start to begin the loop.
func NewJob(name string, schedule *Schedule, run RunFunc, logger *slog.Logger) *Job {
	return &Job{
		name:     name,
		schedule: schedule,
		run:      run,
		logger:   logger.With("component", "schedule", "job", name),
		now:      time.Now,
		after:    time.After,
	}
}

// NextRun returns the next scheduled run time from now.
func (j *Job) NextRun() time.Time {
	return j.schedule.Next(j.now())
}

// Start launches the scheduling loop and returns immediately. The loop exits when ctx is
// cancelled; the returned channel is closed once it has.
func (j *Job) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.loop(ctx)
	}()
	return done
}

func (j *Job) loop(ctx context.Context) {
	for {
		next := j.schedule.Next(j.now())
		wait := next.Sub(j.now())

		j.logger.Debug("waiting for next scheduled run", "next_run", next, "wait_duration", wait)

		select {
		case <-ctx.Done():
			j.logger.Info("scheduled job shutting down")
			return
		case <-j.after(wait):
			j.execute(ctx)
		}
	}
}

func (j *Job) execute(ctx context.Context) {
	j.logger.Info("starting scheduled run")
	if err := j.run(ctx); err != nil {
		j.logger.Warn("scheduled run completed with error", "error", err)
		return
	}
	j.logger.Info("scheduled run completed successfully")
}
