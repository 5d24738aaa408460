package fetcher

import (
	"encoding/json"
	"fmt"

	"github.com/caevv/lgstats/internal/jsonorder"
)

// DecodeRoster decodes the roster document: an object of adapter key to
// adapter description.
func DecodeRoster(data []byte) (Roster, error) {
	var roster Roster
	err := jsonorder.ForEach(data, func(key string, value json.RawMessage) error {
		var a Adapter
		if err := json.Unmarshal(value, &a); err != nil {
			return fmt.Errorf("decode adapter %q: %w", key, err)
		}
		a.Key = key
		roster = append(roster, a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// bundleWire is the on-the-wire shape of one job window member.
type bundleWire struct {
	Job     json.RawMessage   `json:"job"`
	Tasks   []json.RawMessage `json:"tasks"`
	History []json.RawMessage `json:"history"`
}

// DecodeJobWindow decodes the job window document: an object of job key to
// {job, tasks, history}. A member that does not decode is kept with Err set
// so the caller can count it; undecodable tasks are counted in BadTasks and
// undecodable history entries are dropped.
func DecodeJobWindow(data []byte) (JobWindow, error) {
	var window JobWindow
	err := jsonorder.ForEach(data, func(key string, value json.RawMessage) error {
		window = append(window, decodeBundle(key, value))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return window, nil
}

func decodeBundle(key string, value json.RawMessage) JobBundle {
	bundle := JobBundle{Key: key}

	var wire bundleWire
	if err := json.Unmarshal(value, &wire); err != nil {
		bundle.Err = fmt.Errorf("decode job bundle: %w", err)
		return bundle
	}

	if !jsonorder.IsObject(wire.Job) {
		bundle.Err = fmt.Errorf("job bundle has no job object")
		return bundle
	}
	if err := json.Unmarshal(wire.Job, &bundle.Job); err != nil {
		bundle.Err = fmt.Errorf("decode job: %w", err)
		return bundle
	}

	bundle.Tasks = make([]RawTask, 0, len(wire.Tasks))
	for _, raw := range wire.Tasks {
		var task RawTask
		if err := json.Unmarshal(raw, &task); err != nil {
			bundle.BadTasks++
			continue
		}
		bundle.Tasks = append(bundle.Tasks, task)
	}

	bundle.History = make([]RawHistory, 0, len(wire.History))
	for _, raw := range wire.History {
		var h RawHistory
		if err := json.Unmarshal(raw, &h); err != nil {
			continue
		}
		bundle.History = append(bundle.History, h)
	}

	return bundle
}
