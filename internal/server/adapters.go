package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/caevv/lgstats/internal/scheduler"
	"github.com/caevv/lgstats/internal/store"
)

// StoreAdapter adapts store.Store to server.Store interface
type StoreAdapter struct {
	store store.Store
}

// NewStoreAdapter creates a new store adapter
func NewStoreAdapter(s store.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetRuns returns recent runs, newest first
func (a *StoreAdapter) GetRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	runs, err := a.store.GetRuns(limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarize(run)
	}
	return summaries, nil
}

// GetRun returns a specific run by ID
func (a *StoreAdapter) GetRun(ctx context.Context, runID string) (*RunSummary, error) {
	run, err := a.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	summary := summarize(run)
	return &summary, nil
}

// LastSuccess returns the most recent successful run, or nil when there is
// none yet.
func (a *StoreAdapter) LastSuccess(ctx context.Context) (*RunSummary, error) {
	run, err := a.store.LastSuccess()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	summary := summarize(run)
	return &summary, nil
}

func summarize(run *store.RunRecord) RunSummary {
	status := "success"
	if !run.Success {
		status = "failure"
	}
	if run.IsRunning() {
		status = "running"
	}

	return RunSummary{
		RunID:          run.RunID,
		Trigger:        run.Trigger,
		StartTime:      run.StartTime,
		EndTime:        run.EndTime,
		Duration:       float64(run.Duration().Milliseconds()),
		Status:         status,
		Error:          run.Error,
		OutputPath:     run.OutputPath,
		TotalJobCount:  run.TotalJobCount,
		TotalTaskCount: run.TotalTaskCount,
		AdapterCount:   run.AdapterCount,
		Diagnostics:    run.Diagnostics,
	}
}

// SchedulerAdapter adapts scheduler.Scheduler to server.Scheduler interface
type SchedulerAdapter struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerAdapter creates a new scheduler adapter
func NewSchedulerAdapter(s *scheduler.Scheduler) *SchedulerAdapter {
	return &SchedulerAdapter{scheduler: s}
}

// GetTasks returns all scheduled tasks with their status
func (a *SchedulerAdapter) GetTasks(ctx context.Context) ([]TaskSummary, error) {
	stats := a.scheduler.ListStats()
	summaries := make([]TaskSummary, 0, len(stats))
	for _, st := range stats {
		summaries = append(summaries, taskSummary(st))
	}
	return summaries, nil
}

// GetTask returns a specific task by ID
func (a *SchedulerAdapter) GetTask(ctx context.Context, taskID string) (*TaskSummary, error) {
	st, found := a.scheduler.Stats(taskID)
	if !found {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	summary := taskSummary(st)
	return &summary, nil
}

func taskSummary(st *scheduler.TaskStats) TaskSummary {
	summary := TaskSummary{
		ID:        st.TaskID,
		Schedule:  st.Schedule,
		RunCount:  st.RunCount,
		LastError: st.LastError,
	}
	if !st.LastRun.IsZero() {
		last := st.LastRun
		summary.LastRun = &last
	}
	if !st.NextRun.IsZero() {
		next := st.NextRun
		summary.NextRun = &next
	}
	return summary
}
