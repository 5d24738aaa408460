package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterDoc = `{
  "Zebra-2": {"id": "2", "name": "Zebra", "type": "Zebra", "status": "ONLINE", "uptime": 10, "last_hb": 1},
  "Apple-1": {"id": "1", "name": "Apple", "type": "Apple", "status": "OFFLINE", "uptime": 5, "last_hb": 30}
}`

const jobsDoc = `{
  "job-b": {
    "job": {"job_id": "job-b", "status": "FINISHED", "starttime": "Oct 15,2026 10:00:00",
            "endtime": "Oct 15,2026 10:05:00", "graph_activity": 4, "task_count": 2,
            "active_task_count": 0, "error_count": 1,
            "job_config": {"roles": {"bob": {"owner": false}, "alice": {"owner": true}}}},
    "tasks": [
      {"task_id": "t1", "status": "complete", "adapter_name": "Apple", "adapter_id": "1",
       "start_time": "Oct 15,2026 10:00:00", "end_time": "Oct 15,2026 10:01:00"},
      {"task_id": 42}
    ],
    "history": [
      {"task_id": "t1", "number_of_new_tasks_generated": 3, "graph_changes": 7},
      "garbage"
    ]
  },
  "job-a": {"job": "not an object"}
}`

func TestDecodeRoster_KeepsOrder(t *testing.T) {
	roster, err := DecodeRoster([]byte(rosterDoc))
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, "Zebra-2", roster[0].Key)
	assert.Equal(t, "Zebra-2", roster[0].DisplayName())
	assert.Equal(t, "ONLINE", roster[0].Status)
	assert.Equal(t, "Apple-1", roster[1].DisplayName())
	assert.Equal(t, int64(30), roster[1].LastHeartbeat)
}

func TestAdapter_DisplayNameFallsBackToKey(t *testing.T) {
	a := Adapter{Key: "roster-key", Name: "only-name"}
	assert.Equal(t, "roster-key", a.DisplayName())
}

func TestDecodeJobWindow(t *testing.T) {
	window, err := DecodeJobWindow([]byte(jobsDoc))
	require.NoError(t, err)
	require.Len(t, window, 2)

	b := window[0]
	assert.Equal(t, "job-b", b.Key)
	require.NoError(t, b.Err)
	require.NotNil(t, b.Job.JobID)
	assert.Equal(t, "job-b", *b.Job.JobID)
	assert.Equal(t, int64(4), *b.Job.GraphActivity)
	assert.Len(t, b.Tasks, 1)
	assert.Equal(t, 1, b.BadTasks)
	require.Len(t, b.History, 1)
	assert.Equal(t, int64(3), *b.History[0].NewTasks)
	assert.Equal(t, int64(7), *b.History[0].GraphChanges)

	assert.Equal(t, "job-a", window[1].Key)
	assert.Error(t, window[1].Err)
}

func TestDecodeJobWindow_NotAnObject(t *testing.T) {
	_, err := DecodeJobWindow([]byte(`[]`))
	assert.Error(t, err)
}

func TestRawJob_Roles(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   []Role
	}{
		{
			name:   "document order kept",
			config: `{"roles": {"bob": {"owner": false}, "alice": {"owner": true}}}`,
			want:   []Role{{Name: "bob"}, {Name: "alice", Owner: true}},
		},
		{
			name:   "missing roles",
			config: `{"adapters": {}}`,
			want:   nil,
		},
		{
			name:   "missing job_config",
			config: ``,
			want:   nil,
		},
		{
			name:   "owner flag absent or not boolean",
			config: `{"roles": {"carol": {}, "dave": {"owner": "yes"}, "erin": 3}}`,
			want:   []Role{{Name: "carol"}, {Name: "dave"}, {Name: "erin"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := RawJob{}
			if tt.config != "" {
				job.JobConfig = []byte(tt.config)
			}
			assert.Equal(t, tt.want, job.Roles())
		})
	}
}

func TestTimestamp_Resolve(t *testing.T) {
	loc := time.UTC

	ts, ok, err := TextTimestamp("Oct 15,2026 10:00:00").Resolve(loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2026, 10, 15, 10, 0, 0, 0, loc), ts)

	ts, ok, err = TextTimestamp("2026-10-15T10:00:00Z").Resolve(loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1792058400), ts.Unix())

	ts, ok, err = EpochTimestamp(1792058400000).Resolve(loc)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1792058400), ts.Unix())

	_, ok, err = TextTimestamp("Jan 01,1970 00:00:00").Resolve(loc)
	require.NoError(t, err)
	assert.False(t, ok, "epoch zero means not set")

	_, ok, err = Timestamp{}.Resolve(loc)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = TextTimestamp("yesterday").Resolve(loc)
	assert.Error(t, err)
}

func TestTimestamp_ResolveUnsetInOtherZones(t *testing.T) {
	for _, name := range []string{"America/New_York", "Pacific/Kiritimati", "Etc/GMT+12"} {
		loc, err := time.LoadLocation(name)
		require.NoError(t, err)

		_, ok, err := TextTimestamp("Jan 01,1970 00:00:00").Resolve(loc)
		require.NoError(t, err)
		assert.False(t, ok, "epoch written in UTC, read in %s", name)
	}

	_, ok, err := TextTimestamp("Dec 31,1969 19:00:00").Resolve(time.UTC)
	require.NoError(t, err)
	assert.False(t, ok, "epoch written in New York, read in UTC")

	ts, ok, err := TextTimestamp("Jan 02,1970 00:00:00").Resolve(time.UTC)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(86400), ts.Unix())
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var task RawTask
	require.NoError(t, json.Unmarshal([]byte(`{"start_time": 1792058400000, "end_time": null}`), &task))
	assert.False(t, task.StartTime.IsAbsent())
	assert.True(t, task.EndTime.IsAbsent())

	require.Error(t, json.Unmarshal([]byte(`{"start_time": true}`), &task))
}

func TestHTTPFetcher(t *testing.T) {
	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		switch r.URL.Path {
		case "/api/adapter":
			w.Write([]byte(rosterDoc))
		case "/api/jobs/days/full/1/7":
			w.Write([]byte(jobsDoc))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, nil)

	roster, err := f.Roster(context.Background())
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	window, err := f.Jobs(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, window, 2)

	assert.Equal(t, []string{"/api/adapter", "/api/jobs/days/full/1/7"}, gotPaths)
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/adapter" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{BaseURL: srv.URL}, nil)

	_, err := f.Roster(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "roster", fe.Op)
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)

	_, err = f.Jobs(context.Background(), 30)
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "jobs", fe.Op)
	assert.Zero(t, fe.StatusCode)
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)

	_, err := f.Roster(context.Background())
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Error(t, fe.Err)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.json")
	jobsPath := filepath.Join(dir, "jobs.json")
	require.NoError(t, os.WriteFile(rosterPath, []byte(rosterDoc), 0o600))
	require.NoError(t, os.WriteFile(jobsPath, []byte(jobsDoc), 0o600))

	f := NewFileFetcher(rosterPath, jobsPath)

	roster, err := f.Roster(context.Background())
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	window, err := f.Jobs(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, window, 2)

	missing := NewFileFetcher(filepath.Join(dir, "nope.json"), jobsPath)
	_, err = missing.Roster(context.Background())
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}
