// Package scheduler runs periodic maintenance jobs on gocron.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler runs named jobs at fixed intervals. A job never overlaps with
// itself; a run that is still busy when the next one is due reschedules it.
type Scheduler struct {
	s gocron.Scheduler
}

// New creates a stopped scheduler whose jobs receive ctx.
func New(ctx context.Context) (*Scheduler, error) {
	s, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithContext(ctx),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
					slog.ErrorContext(ctx, "scheduled job failed", "job_name", jobName, "job_id", jobID.String(), "error", err)
				}),
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					slog.ErrorContext(ctx, "scheduled job panicked", "job_name", jobName, "job_id", jobID.String(), "recover_data", recoverData)
				}),
			),
		),
		gocron.WithLogger(slog.Default()),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, err
	}

	return &Scheduler{s: s}, nil
}

// Every registers fn to run every interval under name.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.s.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.s.Start()
}

// Close stops the scheduler and waits for running jobs.
func (s *Scheduler) Close() error {
	return s.s.Shutdown()
}
