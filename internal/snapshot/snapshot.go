// Package snapshot defines the output document of one aggregation run and
// its serialized form.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/caevv/lgstats/internal/jsonorder"
)

// TopUsers is the maximum number of leaderboard entries.
const TopUsers = 10

// Snapshot is the complete result of one run. Field order is the order of
// the serialized document. A Snapshot is not modified after it is built.
type Snapshot struct {
	TopUsers        Leaderboard `json:"top_users_by_job_submitted"`
	Adapters        []string    `json:"adapters"`
	TotalJobCount   int64       `json:"total_job_count"`
	TotalErrorCount int64       `json:"total_error_count"`
	TotalTaskCount  int64       `json:"total_task_count"`
	AvgJobTime      int64       `json:"avg_job_time"` // seconds
	JobCountByHour  []int64     `json:"job_count_by_hour"`

	GraphActivityMin []int64 `json:"graph_activity_min"`
	GraphActivityMax []int64 `json:"graph_activity_max"`
	GraphActivityAvg []int64 `json:"graph_activity_avg"`

	AdapterTasksPerDay        []AdapterSeries `json:"adapter_tasks_per_day"`
	AdapterTasksSpawnedPerDay []AdapterRange  `json:"adapter_tasks_spawned_per_day"`
	AdapterErrorsPerDay       []AdapterSeries `json:"adapter_errors_per_day"`
	AdapterAvgRuntimeDay      []AdapterSeries `json:"adapter_avg_runtime_day"`

	JobsPerDay           []int64 `json:"jobs_per_day"`
	ErrorsPerDay         []int64 `json:"errors_per_day"`
	TaskTotalPerDay      []int64 `json:"task_total_per_day"`
	JobAvgSeedSizePerDay []int64 `json:"job_avg_seed_size_per_day"`

	LastRunTime string `json:"last_run_time"`

	AdapterGraphChangesPerDay []AdapterRange `json:"adapter_graph_changes_per_day"`
	Diagnostics               Diagnostics    `json:"diagnostics"`
}

// AdapterSeries is one day series of one adapter.
type AdapterSeries struct {
	Adapter string  `json:"adapter"`
	Data    []int64 `json:"data"`
}

// AdapterRange is the per-day average, minimum and maximum of a metric of
// one adapter.
type AdapterRange struct {
	Adapter string  `json:"adapter"`
	Avg     []int64 `json:"avg"`
	Min     []int64 `json:"min"`
	Max     []int64 `json:"max"`
}

// Diagnostics reports data quality problems found during the run.
type Diagnostics struct {
	WindowDays         int `json:"window_days"`
	SkippedJobs        int `json:"skipped_jobs"`
	SkippedTasks       int `json:"skipped_tasks"`
	ClampedEvents      int `json:"clamped_events"`
	ClockSkewJobs      int `json:"clock_skew_jobs"`
	ClockSkewTasks     int `json:"clock_skew_tasks"`
	AmbiguousOwnerJobs int `json:"ambiguous_owner_jobs"`
}

// Skipped returns the number of records excluded from the aggregates.
func (d Diagnostics) Skipped() int {
	return d.SkippedJobs + d.SkippedTasks
}

// UserCount is one leaderboard row.
type UserCount struct {
	User  string
	Count int64
}

// Leaderboard is an ordered user -> job count mapping. It serializes as a
// JSON object whose key order is the slice order.
type Leaderboard []UserCount

// MarshalJSON implements json.Marshaler.
func (l Leaderboard) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, uc := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(uc.User)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", uc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping document order.
func (l *Leaderboard) UnmarshalJSON(data []byte) error {
	var out Leaderboard
	err := jsonorder.ForEach(data, func(key string, value json.RawMessage) error {
		var n int64
		if err := json.Unmarshal(value, &n); err != nil {
			return fmt.Errorf("count for %q: %w", key, err)
		}
		out = append(out, UserCount{User: key, Count: n})
		return nil
	})
	if err != nil {
		return err
	}
	*l = out
	return nil
}
