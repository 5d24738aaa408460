package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caevv/lgstats/internal/server"
	"github.com/caevv/lgstats/internal/snapshot"
)

var (
	// ErrNoSnapshot is returned while no run has completed yet.
	ErrNoSnapshot = errors.New("no snapshot available yet")

	// ErrUnsupported is returned by sources that cannot perform an operation.
	ErrUnsupported = errors.New("not supported by this source")
)

// Source supplies the data shown by the dashboard.
type Source interface {
	Snapshot(ctx context.Context) (*snapshot.Snapshot, error)
	Runs(ctx context.Context, limit int) ([]server.RunSummary, error)
	Tasks(ctx context.Context) ([]server.TaskSummary, error)
	Trigger(ctx context.Context) (string, error)
	String() string
}

// StatusError is a non-success response of the lgstats API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// HTTPSource reads from the API of a running "lgstats serve".
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a source for the server at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) String() string {
	return s.baseURL
}

func (s *HTTPSource) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	err := s.do(ctx, http.MethodGet, "/api/snapshot", http.StatusOK, &snap)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *HTTPSource) Runs(ctx context.Context, limit int) ([]server.RunSummary, error) {
	var runs []server.RunSummary
	if err := s.do(ctx, http.MethodGet, "/api/runs?limit="+strconv.Itoa(limit), http.StatusOK, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *HTTPSource) Tasks(ctx context.Context) ([]server.TaskSummary, error) {
	var tasks []server.TaskSummary
	if err := s.do(ctx, http.MethodGet, "/api/tasks", http.StatusOK, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Trigger asks the server to start a run now.
func (s *HTTPSource) Trigger(ctx context.Context) (string, error) {
	var resp server.TriggerResponse
	err := s.do(ctx, http.MethodPost, "/api/runs", http.StatusAccepted, &resp)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
		return "", server.ErrBusy
	}
	if err != nil {
		return "", err
	}
	return resp.RunID, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var apiErr server.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(body, &apiErr)
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// FileSource reads a snapshot document from disk. It has no run history
// and cannot start runs.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the snapshot at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) String() string {
	return s.path
}

func (s *FileSource) Snapshot(_ context.Context) (*snapshot.Snapshot, error) {
	return snapshot.ReadFile(s.path)
}

func (s *FileSource) Runs(_ context.Context, _ int) ([]server.RunSummary, error) {
	return nil, nil
}

func (s *FileSource) Tasks(_ context.Context) ([]server.TaskSummary, error) {
	return nil, nil
}

func (s *FileSource) Trigger(_ context.Context) (string, error) {
	return "", ErrUnsupported
}
