package server

import (
	"time"

	"github.com/caevv/lgstats/internal/snapshot"
)

// RunSummary represents a single aggregation run
type RunSummary struct {
	RunID          string               `json:"run_id"`
	Trigger        string               `json:"trigger"`
	StartTime      time.Time            `json:"start_time"`
	EndTime        time.Time            `json:"end_time"`
	Duration       float64              `json:"duration_ms"`
	Status         string               `json:"status"`
	Error          string               `json:"error,omitempty"`
	OutputPath     string               `json:"output_path,omitempty"`
	TotalJobCount  int64                `json:"total_job_count"`
	TotalTaskCount int64                `json:"total_task_count"`
	AdapterCount   int                  `json:"adapter_count"`
	Diagnostics    snapshot.Diagnostics `json:"diagnostics"`
}

// TaskSummary represents a scheduled task with its status
type TaskSummary struct {
	ID        string     `json:"id"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	RunCount  int64      `json:"run_count"`
	LastError string     `json:"last_error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string        `json:"status"`
	Version     string        `json:"version"`
	Uptime      string        `json:"uptime"`
	LastSuccess *time.Time    `json:"last_success,omitempty"`
	LastRunTime string        `json:"last_run_time,omitempty"`
	Tasks       []TaskSummary `json:"tasks,omitempty"`
}

// TriggerResponse is returned when a run is started through the API
type TriggerResponse struct {
	RunID string `json:"run_id"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
