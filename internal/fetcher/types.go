// Package fetcher retrieves the adapter roster and the job window from the
// coordinator API and decodes them into wire records.
//
// Records keep the upstream document order and leave optional fields as
// pointers or raw JSON; interpretation (defaults, runtimes, buckets) belongs
// to the stats package.
package fetcher

import (
	"context"
	"encoding/json"

	"github.com/caevv/lgstats/internal/jsonorder"
)

// Fetcher supplies the two inputs of an aggregation run.
type Fetcher interface {
	// Roster returns the current adapter roster.
	Roster(ctx context.Context) (Roster, error)

	// Jobs returns the job records of the last days days, each bundled with
	// its tasks and history events.
	Jobs(ctx context.Context, days int) (JobWindow, error)
}

// Adapter is one roster entry.
type Adapter struct {
	// Key is the member name the roster used for this adapter.
	Key string `json:"-"`

	ID            string `json:"id"`
	Type          string `json:"type"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Uptime        int64  `json:"uptime"`
	LastHeartbeat int64  `json:"last_hb"`
}

// DisplayName returns name-id, falling back to the roster key when either
// part is missing.
func (a Adapter) DisplayName() string {
	if a.Name == "" || a.ID == "" {
		return a.Key
	}
	return a.Name + "-" + a.ID
}

// Roster is the adapter list in document order.
type Roster []Adapter

// RawJob is the "job" member of a job bundle. Counters are pointers so a
// missing field can be told apart from zero.
type RawJob struct {
	JobID           *string         `json:"job_id"`
	Status          string          `json:"status"`
	StartTime       Timestamp       `json:"starttime"`
	EndTime         Timestamp       `json:"endtime"`
	GraphActivity   *int64          `json:"graph_activity"`
	TaskCount       *int64          `json:"task_count"`
	ActiveTaskCount *int64          `json:"active_task_count"`
	ErrorCount      *int64          `json:"error_count"`
	JobConfig       json.RawMessage `json:"job_config"`
	Seed            json.RawMessage `json:"seed"`
}

// RawTask is one element of a bundle's task list.
type RawTask struct {
	TaskID      string    `json:"task_id"`
	Status      string    `json:"status"`
	AdapterName string    `json:"adapter_name"`
	AdapterID   string    `json:"adapter_id"`
	StartTime   Timestamp `json:"start_time"`
	EndTime     Timestamp `json:"end_time"`
}

// RawHistory is one element of a bundle's history list.
type RawHistory struct {
	TaskID       string `json:"task_id"`
	NewTasks     *int64 `json:"number_of_new_tasks_generated"`
	GraphChanges *int64 `json:"graph_changes"`
}

// JobBundle groups a job with its tasks and history.
type JobBundle struct {
	Key     string
	Job     RawJob
	Tasks   []RawTask
	History []RawHistory

	// Err is set when the bundle's job member could not be decoded.
	Err error

	// BadTasks counts task entries that could not be decoded.
	BadTasks int
}

// JobWindow is the job list in document order.
type JobWindow []JobBundle

// Role is one member of job_config.roles.
type Role struct {
	Name  string
	Owner bool
}

// Roles returns job_config.roles in document order. A missing job_config,
// a missing roles member, or a non-object value yields no roles. A role
// whose owner flag is absent or not a boolean is not an owner.
func (j RawJob) Roles() []Role {
	if !jsonorder.IsObject(j.JobConfig) {
		return nil
	}

	var rolesRaw json.RawMessage
	err := jsonorder.ForEach(j.JobConfig, func(key string, value json.RawMessage) error {
		if key == "roles" {
			rolesRaw = value
		}
		return nil
	})
	if err != nil || !jsonorder.IsObject(rolesRaw) {
		return nil
	}

	var roles []Role
	_ = jsonorder.ForEach(rolesRaw, func(name string, value json.RawMessage) error {
		var entry struct {
			Owner any `json:"owner"`
		}
		owner := false
		if jsonorder.IsObject(value) && json.Unmarshal(value, &entry) == nil {
			owner, _ = entry.Owner.(bool)
		}
		roles = append(roles, Role{Name: name, Owner: owner})
		return nil
	})

	return roles
}
