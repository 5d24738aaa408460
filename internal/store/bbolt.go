package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// runsBucket holds run records keyed by start time then run_id, so a
	// cursor walks them in time order.
	runsBucket = "runs"
	// runIndexBucket maps run_id to its key in runsBucket.
	runIndexBucket = "run_index"
)

// BoltStore implements the Store interface using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store at the given path.
func NewBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb at %s: %w", path, err)
	}

	// Initialize buckets
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runIndexBucket)); err != nil {
			return fmt.Errorf("create run_index bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// runKey is the big-endian start time in nanoseconds followed by the run ID.
func runKey(run *RunRecord) []byte {
	key := make([]byte, 8, 8+len(run.RunID))
	binary.BigEndian.PutUint64(key, uint64(run.StartTime.UnixNano()))
	return append(key, run.RunID...)
}

// SaveRun persists a run record.
func (s *BoltStore) SaveRun(run *RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		index := tx.Bucket([]byte(runIndexBucket))

		// A re-saved run may have a different start time; drop the old key.
		if old := index.Get([]byte(run.RunID)); old != nil {
			if err := runs.Delete(old); err != nil {
				return fmt.Errorf("delete previous record: %w", err)
			}
		}

		key := runKey(run)
		if err := runs.Put(key, data); err != nil {
			return fmt.Errorf("put run: %w", err)
		}
		if err := index.Put([]byte(run.RunID), key); err != nil {
			return fmt.Errorf("put run index: %w", err)
		}
		return nil
	})
}

// GetRun retrieves a specific run by its ID.
func (s *BoltStore) GetRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	var run *RunRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket([]byte(runIndexBucket)).Get([]byte(runID))
		if key == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}

		data := tx.Bucket([]byte(runsBucket)).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s (dangling index)", ErrNotFound, runID)
		}

		run = &RunRecord{}
		if err := json.Unmarshal(data, run); err != nil {
			return fmt.Errorf("unmarshal run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// GetRuns retrieves the most recent runs, newest first.
func (s *BoltStore) GetRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var runs []*RunRecord
	err := s.eachNewest(func(run *RunRecord) bool {
		runs = append(runs, run)
		return len(runs) < limit
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// LastSuccess returns the newest successful run.
func (s *BoltStore) LastSuccess() (*RunRecord, error) {
	var found *RunRecord
	err := s.eachNewest(func(run *RunRecord) bool {
		if run.Success {
			found = run
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// eachNewest calls fn for each run from newest to oldest until fn returns
// false.
func (s *BoltStore) eachNewest(fn func(*RunRecord) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			run := &RunRecord{}
			if err := json.Unmarshal(v, run); err != nil {
				return fmt.Errorf("unmarshal run: %w", err)
			}
			if !fn(run) {
				return nil
			}
		}
		return nil
	})
}

// Close closes the BoltDB database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
