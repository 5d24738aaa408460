// Package store keeps the history of aggregation runs. Only run metadata is
// stored; snapshots themselves are regenerated on every run.
package store

import (
	"errors"
	"time"

	"github.com/caevv/lgstats/internal/snapshot"
)

// DefaultLimit is used when GetRuns is called with a non-positive limit.
const DefaultLimit = 100

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Store defines the interface for persisting and retrieving run history.
type Store interface {
	// SaveRun persists a run record, replacing any record with the same ID.
	SaveRun(run *RunRecord) error

	// GetRun retrieves a specific run by its ID.
	GetRun(runID string) (*RunRecord, error)

	// GetRuns retrieves up to limit runs, newest first.
	GetRuns(limit int) ([]*RunRecord, error)

	// LastSuccess returns the most recent successful run, or ErrNotFound.
	LastSuccess() (*RunRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// RunRecord describes one aggregation run.
type RunRecord struct {
	// RunID is a unique identifier for this run (UUID).
	RunID string `json:"run_id"`

	// Trigger says what started the run: "cli", "schedule" or "api".
	Trigger string `json:"trigger"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// OutputPath is where the snapshot was written.
	OutputPath string `json:"output_path,omitempty"`

	TotalJobCount  int64                `json:"total_job_count"`
	TotalTaskCount int64                `json:"total_task_count"`
	AdapterCount   int                  `json:"adapter_count"`
	Diagnostics    snapshot.Diagnostics `json:"diagnostics"`
}

// Duration returns the time taken for this run.
// Returns zero if the run hasn't completed yet.
func (r *RunRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// IsRunning returns true if the run has started but not completed.
func (r *RunRecord) IsRunning() bool {
	return !r.StartTime.IsZero() && r.EndTime.IsZero()
}

func validateRun(run *RunRecord) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.RunID == "" {
		return errors.New("run_id is required")
	}
	if run.StartTime.IsZero() {
		return errors.New("start_time is required")
	}
	return nil
}
