package stats

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/caevv/lgstats/internal/fetcher"
)

// UnknownUser is the user of a job without an owner role.
const UnknownUser = "unknown"

// JobRecord is a classified job.
type JobRecord struct {
	JobID           string
	Status          string
	StartTime       time.Time
	EndTime         time.Time // zero while the job is running
	GraphActivity   int64
	TaskCount       int64
	ActiveTaskCount int64
	ErrorCount      int64

	// Runtime is end-start, or now-start for a running job. Only meaningful
	// when ClockSkew is false.
	Runtime   time.Duration
	ClockSkew bool

	User           string
	AmbiguousOwner bool // more than one role marked owner; the last one won
	SeedSize       int64
	DayBucket      int
}

// Running reports whether the job has no end time yet.
func (j JobRecord) Running() bool {
	return j.EndTime.IsZero()
}

// TaskRecord is a classified task.
type TaskRecord struct {
	TaskID      string
	Status      string
	AdapterName string
	AdapterID   string
	StartTime   time.Time
	EndTime     time.Time
	Runtime     time.Duration
	ClockSkew   bool
}

// AdapterKey returns the composite adapter identity name-id.
func (t TaskRecord) AdapterKey() string {
	return t.AdapterName + "-" + t.AdapterID
}

// Failed reports whether the task ended in any state other than complete.
func (t TaskRecord) Failed() bool {
	return t.Status != "complete"
}

// HistoryEvent carries the per-task history metrics; absent fields are 0.
type HistoryEvent struct {
	TaskID       string
	TasksSpawned int64
	GraphChanges int64
}

// NewHistoryEvent applies the absent-means-zero defaults to a raw entry. A
// negative count is treated as absent.
func NewHistoryEvent(raw fetcher.RawHistory) HistoryEvent {
	return HistoryEvent{
		TaskID:       raw.TaskID,
		TasksSpawned: max(valueOr(raw.NewTasks, 0), 0),
		GraphChanges: max(valueOr(raw.GraphChanges, 0), 0),
	}
}

// Classifier turns raw records into classified ones relative to a pinned now.
type Classifier struct {
	now      time.Time
	loc      *time.Location
	bucketer *Bucketer
}

// NewClassifier creates a Classifier. Text timestamps are read in loc.
func NewClassifier(now time.Time, loc *time.Location, bucketer *Bucketer) *Classifier {
	if loc == nil {
		loc = time.Local
	}
	return &Classifier{now: now, loc: loc, bucketer: bucketer}
}

// Job classifies one raw job. It returns a *MalformedRecordError when
// job_id or starttime is missing, a timestamp cannot be parsed or a counter
// is negative.
func (c *Classifier) Job(raw fetcher.RawJob) (JobRecord, error) {
	id := ""
	if raw.JobID != nil {
		id = strings.TrimSpace(*raw.JobID)
	}
	if id == "" {
		return JobRecord{}, &MalformedRecordError{Kind: "job", Field: "job_id"}
	}

	start, end, err := c.span(raw.StartTime, raw.EndTime)
	if err != nil {
		err.Kind, err.ID = "job", id
		if err.Field == "start" {
			err.Field = "starttime"
		} else {
			err.Field = "endtime"
		}
		return JobRecord{}, err
	}

	counters := []struct {
		field string
		value *int64
	}{
		{"graph_activity", raw.GraphActivity},
		{"task_count", raw.TaskCount},
		{"active_task_count", raw.ActiveTaskCount},
		{"error_count", raw.ErrorCount},
	}
	for _, c := range counters {
		if c.value != nil && *c.value < 0 {
			return JobRecord{}, &MalformedRecordError{Kind: "job", ID: id, Field: c.field, Err: ErrNegativeCount}
		}
	}

	seedSize, seedErr := SeedSize(raw.Seed)
	if seedErr != nil {
		return JobRecord{}, &MalformedRecordError{Kind: "job", ID: id, Field: "seed", Err: seedErr}
	}

	user, ambiguous := ownerOf(raw.Roles())
	runtime, rtErr := runtimeOf(start, end, c.now)

	return JobRecord{
		JobID:           id,
		Status:          raw.Status,
		StartTime:       start,
		EndTime:         end,
		GraphActivity:   valueOr(raw.GraphActivity, 0),
		TaskCount:       valueOr(raw.TaskCount, 0),
		ActiveTaskCount: valueOr(raw.ActiveTaskCount, 0),
		ErrorCount:      valueOr(raw.ErrorCount, 0),
		Runtime:         runtime,
		ClockSkew:       rtErr != nil,
		User:            user,
		AmbiguousOwner:  ambiguous,
		SeedSize:        seedSize,
		DayBucket:       c.bucketer.Bucket(start),
	}, nil
}

// Task classifies one raw task. task_id, adapter_name, adapter_id and
// start_time are required.
func (c *Classifier) Task(raw fetcher.RawTask) (TaskRecord, error) {
	id := strings.TrimSpace(raw.TaskID)
	switch {
	case id == "":
		return TaskRecord{}, &MalformedRecordError{Kind: "task", Field: "task_id"}
	case raw.AdapterName == "":
		return TaskRecord{}, &MalformedRecordError{Kind: "task", ID: id, Field: "adapter_name"}
	case raw.AdapterID == "":
		return TaskRecord{}, &MalformedRecordError{Kind: "task", ID: id, Field: "adapter_id"}
	}

	start, end, err := c.span(raw.StartTime, raw.EndTime)
	if err != nil {
		err.Kind, err.ID = "task", id
		err.Field += "_time"
		return TaskRecord{}, err
	}

	runtime, rtErr := runtimeOf(start, end, c.now)

	return TaskRecord{
		TaskID:      id,
		Status:      raw.Status,
		AdapterName: raw.AdapterName,
		AdapterID:   raw.AdapterID,
		StartTime:   start,
		EndTime:     end,
		Runtime:     runtime,
		ClockSkew:   rtErr != nil,
	}, nil
}

// span resolves a start/end pair. The returned error has Field set to
// "start" or "end"; the caller fills in the rest.
func (c *Classifier) span(startTS, endTS fetcher.Timestamp) (start, end time.Time, err *MalformedRecordError) {
	start, ok, perr := startTS.Resolve(c.loc)
	if perr != nil {
		return start, end, &MalformedRecordError{Field: "start", Err: perr}
	}
	if !ok {
		return start, end, &MalformedRecordError{Field: "start"}
	}

	end, ok, perr = endTS.Resolve(c.loc)
	if perr != nil {
		return start, end, &MalformedRecordError{Field: "end", Err: perr}
	}
	if !ok {
		end = time.Time{}
	}
	return start, end, nil
}

// runtimeOf returns end-start, or now-start when end is zero. A negative
// result is reported as ErrClockSkew.
func runtimeOf(start, end, now time.Time) (time.Duration, error) {
	var d time.Duration
	if end.IsZero() {
		d = now.Sub(start)
	} else {
		d = end.Sub(start)
	}
	if d < 0 {
		return d, ErrClockSkew
	}
	return d, nil
}

// ownerOf returns the last role marked owner, or UnknownUser. ambiguous is
// true when more than one role is marked owner.
func ownerOf(roles []fetcher.Role) (user string, ambiguous bool) {
	user = UnknownUser
	owners := 0
	for _, r := range roles {
		if r.Owner {
			user = r.Name
			owners++
		}
	}
	return user, owners > 1
}

// SeedSize returns the byte length of the canonical JSON form of a seed
// payload: decoded and re-encoded, which sorts object keys and drops
// insignificant whitespace. An absent or null seed has size 0.
func SeedSize(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return int64(len(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))), nil
}

func valueOr(p *int64, def int64) int64 {
	if p == nil {
		return def
	}
	return *p
}

// seconds truncates a duration to whole seconds.
func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
