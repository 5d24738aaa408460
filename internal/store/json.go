package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// JSONStore implements the Store interface using a simple JSON file.
// All runs are kept in memory and persisted to disk on each write.
type JSONStore struct {
	path string
	runs map[string]*RunRecord // indexed by run_id
	mu   sync.RWMutex
}

// jsonPersistence is the on-disk format for the JSON store.
type jsonPersistence struct {
	Runs []*RunRecord `json:"runs"`
}

// NewJSONStore creates a new JSON file-backed store at the given path.
func NewJSONStore(path string) (Store, error) {
	s := &JSONStore{
		path: path,
		runs: make(map[string]*RunRecord),
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("load existing data: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	return s, nil
}

// load reads the JSON file and populates the in-memory map.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var persist jsonPersistence
	if err := json.Unmarshal(data, &persist); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}

	s.runs = make(map[string]*RunRecord, len(persist.Runs))
	for _, run := range persist.Runs {
		s.runs[run.RunID] = run
	}

	return nil
}

// save writes the runs, newest first, to the JSON file.
func (s *JSONStore) save() error {
	persist := jsonPersistence{Runs: s.sorted()}
	data, err := json.MarshalIndent(persist, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	// Write to temp file first, then rename (atomic on POSIX)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// sorted returns all runs ordered by start time descending, run_id as the
// tie breaker. Callers hold the lock.
func (s *JSONStore) sorted() []*RunRecord {
	runs := make([]*RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartTime.Equal(runs[j].StartTime) {
			return runs[i].StartTime.After(runs[j].StartTime)
		}
		return runs[i].RunID > runs[j].RunID
	})
	return runs
}

// SaveRun persists a run record.
func (s *JSONStore) SaveRun(run *RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = run
	return s.save()
}

// GetRun retrieves a specific run by its ID.
func (s *JSONStore) GetRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}

	return run, nil
}

// GetRuns retrieves the most recent runs, newest first.
func (s *JSONStore) GetRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := s.sorted()
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// LastSuccess returns the newest successful run.
func (s *JSONStore) LastSuccess() (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.sorted() {
		if run.Success {
			return run, nil
		}
	}
	return nil, ErrNotFound
}

// Close releases resources held by the store.
// For JSON store, this is a no-op since we don't hold open file handles.
func (s *JSONStore) Close() error {
	return nil
}
