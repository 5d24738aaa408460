package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/caevv/lgstats/internal/snapshot"
)

const (
	version      = "v0.1.0"
	defaultLimit = 100
	maxLimit     = 1000
)

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  s.Uptime(),
	}

	if s.store != nil {
		last, err := s.store.LastSuccess(ctx)
		if err != nil {
			s.logger.Error("failed to get last successful run", "error", err)
			response.Status = "degraded"
		} else if last != nil {
			response.LastSuccess = &last.EndTime
		}
	}

	if s.engine != nil {
		if snap := s.engine.Latest(); snap != nil {
			response.LastRunTime = snap.LastRunTime
		}
	}

	if s.scheduler != nil {
		tasks, err := s.scheduler.GetTasks(ctx)
		if err != nil {
			s.logger.Error("failed to get tasks", "error", err)
			response.Status = "degraded"
		} else {
			response.Tasks = tasks
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSnapshot returns the latest snapshot document
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}

	data, err := snapshot.Marshal(snap)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to encode snapshot", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write snapshot response", "error", err)
	}
}

// handleListRuns returns recent runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.parseLimitParam(r)

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	runs, err := s.store.GetRuns(ctx, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve runs", err)
		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a specific run by ID
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := r.PathValue("id")

	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required", nil)
		return
	}

	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store not available", nil)
		return
	}

	run, err := s.store.GetRun(ctx, runID)
	if errors.Is(err, ErrNotFound) || (err == nil && run == nil) {
		s.writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve run", err)
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleTriggerRun starts a run outside the schedule
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeError(w, http.StatusServiceUnavailable, "engine not available", nil)
		return
	}

	runID, err := s.engine.Trigger(r.Context())
	if errors.Is(err, ErrBusy) {
		s.writeError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to start run", err)
		return
	}

	s.logger.Info("run triggered via API", "run_id", runID)
	s.writeJSON(w, http.StatusAccepted, TriggerResponse{RunID: runID})
}

// handleListTasks returns all scheduled tasks
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not available", nil)
		return
	}

	tasks, err := s.scheduler.GetTasks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve tasks", err)
		return
	}

	s.writeJSON(w, http.StatusOK, tasks)
}

// handleGetTask returns a specific scheduled task
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")

	if s.scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not available", nil)
		return
	}

	task, err := s.scheduler.GetTask(r.Context(), taskID)
	if errors.Is(err, ErrNotFound) || (err == nil && task == nil) {
		s.writeError(w, http.StatusNotFound, "task not found", nil)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve task", err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

// handleMetrics exposes the Prometheus registry
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.writeError(w, http.StatusServiceUnavailable, "metrics not available", nil)
		return
	}
	s.metrics.ServeHTTP(w, r)
}

// latest returns the current snapshot or writes the matching error response.
func (s *Server) latest(w http.ResponseWriter) (*snapshot.Snapshot, bool) {
	if s.engine == nil {
		s.writeError(w, http.StatusServiceUnavailable, "engine not available", nil)
		return nil, false
	}

	snap := s.engine.Latest()
	if snap == nil {
		s.writeError(w, http.StatusNotFound, "no snapshot has been produced yet", nil)
		return nil, false
	}
	return snap, true
}

// parseLimitParam parses the limit query parameter
func (s *Server) parseLimitParam(r *http.Request) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return defaultLimit
	}

	if limit > maxLimit {
		return maxLimit
	}

	return limit
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil && s.logger != nil {
		s.logger.Error("API error", "status", status, "message", message, "error", err)
	}

	s.writeJSON(w, status, response)
}
