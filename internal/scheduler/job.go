package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Runner is the work a scheduled task performs. Run must return when ctx
// is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Task describes one scheduled activity.
type Task struct {
	ID       string
	Schedule string
	// Timeout bounds a single execution. Zero means no limit beyond the
	// scheduler's own lifetime.
	Timeout time.Duration
}

// TaskStats reports the execution history of a scheduled task.
type TaskStats struct {
	TaskID    string    `json:"task_id"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError string    `json:"last_error,omitempty"`
}

// GenerateRunID generates a unique UUID for a run.
func GenerateRunID() string {
	return uuid.New().String()
}
