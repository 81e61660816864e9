package scheduler

import (
	"context"
	"sync"
	"time"
)

// Job is a unit of scheduled work.
type Job interface {
	// Name identifies the job in logs and history.
	Name() string
	// Schedule is the cron expression (with seconds field) the job runs on.
	Schedule() string
	// Run executes the job.
	Run(ctx context.Context) error
}

// JobResult records one execution.
type JobResult struct {
	Job       string        `json:"job"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobStats aggregates the recorded executions of one job.
type JobStats struct {
	Job       string    `json:"job"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

const historyLimit = 100

// history keeps the most recent executions, newest last.
type history struct {
	mu      sync.Mutex
	results []JobResult
}

func (h *history) add(r JobResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r)
	if len(h.results) > historyLimit {
		h.results = h.results[len(h.results)-historyLimit:]
	}
}

func (h *history) snapshot() []JobResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]JobResult, len(h.results))
	copy(out, h.results)
	return out
}
