package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	maxAttempts = 3
	retryDelay  = time.Minute
)

// Scheduler runs registered jobs on their cron schedules with bounded retry
// and an in-memory execution history.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	history *history
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		jobs:    make(map[string]Job),
		history: &history{},
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a job under its schedule. Registering two jobs with the same
// name is an error.
func (s *Scheduler) Register(job Job) error {
	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %q already registered", job.Name())
	}

	_, err := s.cron.AddFunc(job.Schedule(), func() {
		s.runJob(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("register job %q (%q): %w", job.Name(), job.Schedule(), err)
	}

	s.jobs[job.Name()] = job
	s.log.Info().Str("job", job.Name()).Str("schedule", job.Schedule()).Msg("job registered")
	return nil
}

// Start begins executing schedules in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")
}

// Stop waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes one registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, job)
}

// runJob executes with retry. Retries stop on context cancellation.
func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	log := s.log.With().Str("job", job.Name()).Logger()
	log.Info().Msg("job starting")

	var err error
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		if err = job.Run(ctx); err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempts).Msg("job attempt failed")

		if attempts < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				err = ctx.Err()
				attempts = maxAttempts
			}
		}
	}

	result := JobResult{
		Job:       job.Name(),
		StartedAt: start,
		Duration:  time.Since(start),
		Attempts:  attempts,
		Success:   err == nil,
	}
	if err != nil {
		result.Error = err.Error()
		log.Error().Err(err).Int("attempts", attempts).Msg("job failed")
	} else {
		log.Info().Dur("duration", result.Duration).Int("attempts", attempts).Msg("job complete")
	}
	s.history.add(result)
	return err
}

// History returns the recorded executions, oldest first.
func (s *Scheduler) History() []JobResult {
	return s.history.snapshot()
}

// Stats aggregates history per job.
func (s *Scheduler) Stats() map[string]JobStats {
	stats := make(map[string]JobStats, len(s.jobs))
	for _, r := range s.history.snapshot() {
		st := stats[r.Job]
		st.Job = r.Job
		st.Runs++
		if !r.Success {
			st.Failures++
			st.LastError = r.Error
		}
		if r.StartedAt.After(st.LastRun) {
			st.LastRun = r.StartedAt
		}
		stats[r.Job] = st
	}
	return stats
}
