package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/config"
	"github.com/caevv/lgstats/internal/fetcher"
	"github.com/caevv/lgstats/internal/metrics"
	"github.com/caevv/lgstats/internal/scheduler"
	"github.com/caevv/lgstats/internal/server"
	"github.com/caevv/lgstats/internal/snapshot"
	"github.com/caevv/lgstats/internal/store"
)

const testRoster = `{
  "Zebra-2": {"id": "2", "name": "Zebra", "type": "Zebra", "status": "ONLINE"},
  "Apple-1": {"id": "1", "name": "Apple", "type": "Apple", "status": "ONLINE"}
}`

const testJobs = `{
  "j1": {
    "job": {"job_id": "j1", "status": "FINISHED", "starttime": "Oct 16,2026 09:00:00",
            "endtime": "Oct 16,2026 09:02:00", "graph_activity": 5, "task_count": 2,
            "active_task_count": 0, "error_count": 1,
            "job_config": {"roles": {"alice": {"owner": true}}}},
    "tasks": [
      {"task_id": "t1", "status": "complete", "adapter_name": "Apple", "adapter_id": "1",
       "start_time": "Oct 16,2026 09:00:00", "end_time": "Oct 16,2026 09:01:00"},
      {"task_id": "t2", "status": "failed", "adapter_name": "Zebra", "adapter_id": "2",
       "start_time": "Oct 16,2026 09:00:00", "end_time": "Oct 16,2026 09:00:30"}
    ],
    "history": [{"task_id": "t1", "number_of_new_tasks_generated": 2, "graph_changes": 4}]
  },
  "j2": {
    "job": {"job_id": "j2", "status": "FINISHED", "starttime": "Oct 15,2026 10:00:00",
            "endtime": "Oct 15,2026 10:00:40", "graph_activity": 1, "task_count": 0,
            "error_count": 0, "job_config": {"roles": {"bob": {"owner": true}}}},
    "tasks": [],
    "history": []
  },
  "broken": {"job": {"status": "FINISHED"}}
}`

var pinnedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// coordinator serves the roster and job window; fail makes every request
// answer 500.
func coordinator(t *testing.T, fail *atomic.Bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/adapter", func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(testRoster))
	})
	mux.HandleFunc("GET /api/jobs/days/full/1/{days}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("days") != "7" {
			t.Errorf("days = %s, want 7", r.PathValue("days"))
		}
		w.Write([]byte(testJobs))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.Server{BaseURL: baseURL, TimeoutSec: 5},
		Window: config.Window{Days: 7, Timezone: "UTC"},
		Output: config.Output{
			Path:        filepath.Join(dir, "out", "metrics.json"),
			ChartPath:   filepath.Join(dir, "out", "metrics.html"),
			MetricsFile: filepath.Join(dir, "lgstats.prom"),
		},
		Store: config.Store{Driver: "json", Path: filepath.Join(dir, "runs.json")},
	}
	if err := config.Finalize(cfg); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, st store.Store) *Runner {
	t.Helper()
	f := fetcher.NewHTTPFetcher(fetcher.HTTPConfig{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.Timeout(),
	}, quietLogger())

	runner, err := NewRunner(context.Background(), cfg, f, st, metrics.New(), quietLogger())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	runner.now = func() time.Time { return pinnedNow }
	return runner
}

func openStore(t *testing.T, cfg *config.Config) store.Store {
	t.Helper()
	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestIntegration_RunWritesOutputs(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	st := openStore(t, cfg)
	runner := newTestRunner(t, cfg, st)

	run, err := runner.Execute(context.Background(), "cli")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !run.Success || run.Error != "" {
		t.Fatalf("run = %+v, want success", run)
	}
	if run.TotalJobCount != 2 || run.AdapterCount != 2 {
		t.Errorf("run counts = %d jobs / %d adapters, want 2 / 2", run.TotalJobCount, run.AdapterCount)
	}
	if run.Diagnostics.SkippedJobs != 1 {
		t.Errorf("SkippedJobs = %d, want 1", run.Diagnostics.SkippedJobs)
	}

	snap, err := snapshot.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := snap.JobsPerDay; len(got) != 7 || got[0] != 1 || got[1] != 1 {
		t.Errorf("JobsPerDay = %v, want [1 1 0 0 0 0 0]", got)
	}
	if snap.LastRunTime != "Oct 16,2026 12:00:00" {
		t.Errorf("LastRunTime = %q", snap.LastRunTime)
	}
	if snap.AvgJobTime != 80 {
		t.Errorf("AvgJobTime = %d, want 80", snap.AvgJobTime)
	}
	if len(snap.TopUsers) != 2 || snap.TopUsers[0].User != "alice" {
		t.Errorf("TopUsers = %v", snap.TopUsers)
	}
	if runner.Latest() == nil || runner.Latest().TotalJobCount != 2 {
		t.Error("Latest() does not hold the new snapshot")
	}

	chart, err := os.ReadFile(cfg.Output.ChartPath)
	if err != nil {
		t.Fatalf("chart file not written: %v", err)
	}
	if !bytes.Contains(chart, []byte("echarts")) {
		t.Error("chart file does not look like an echarts page")
	}

	prom, err := os.ReadFile(cfg.Output.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(prom), `lgstats_runs_total{result="success"} 1`) {
		t.Errorf("metrics file missing success counter:\n%s", prom)
	}

	stored, err := st.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.Trigger != "cli" || !stored.Success || stored.OutputPath != cfg.Output.Path {
		t.Errorf("stored run = %+v", stored)
	}
}

func TestIntegration_RunIsIdempotent(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	runner := newTestRunner(t, cfg, nil)

	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	first, _ := os.ReadFile(cfg.Output.Path)

	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}
	second, _ := os.ReadFile(cfg.Output.Path)

	if !bytes.Equal(first, second) {
		t.Error("two runs with the same input and pinned time produced different documents")
	}
}

func TestIntegration_FetchFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	upstream := coordinator(t, &fail)
	cfg := testConfig(t, upstream.URL)
	st := openStore(t, cfg)
	runner := newTestRunner(t, cfg, st)

	run, err := runner.Execute(context.Background(), "cli")
	if err == nil {
		t.Fatal("Execute() expected error for failing upstream")
	}
	var fe *fetcher.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want FetchError with status 500", err)
	}

	if _, statErr := os.Stat(cfg.Output.Path); !os.IsNotExist(statErr) {
		t.Error("snapshot must not be written when a fetch fails")
	}
	if runner.Latest() != nil {
		t.Error("Latest() must stay nil after a failed run")
	}

	stored, err := st.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if stored.Success || !strings.Contains(stored.Error, "fetch roster") {
		t.Errorf("stored run = %+v, want failure mentioning the roster fetch", stored)
	}

	prom, _ := os.ReadFile(cfg.Output.MetricsFile)
	if !strings.Contains(string(prom), `lgstats_runs_total{result="failure"} 1`) {
		t.Errorf("metrics file missing failure counter:\n%s", prom)
	}
}

func TestIntegration_ChartFailureKeepsRun(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	cfg.Output.ChartPath = filepath.Join(t.TempDir(), "missing", "metrics.html")
	st := openStore(t, cfg)
	runner := newTestRunner(t, cfg, st)

	run, err := runner.Execute(context.Background(), "cli")
	if err != nil {
		t.Fatalf("Execute() error = %v, want success despite the chart failure", err)
	}
	if !run.Success {
		t.Errorf("run = %+v, want success", run)
	}
	if _, err := snapshot.ReadFile(cfg.Output.Path); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}
	if runner.Latest() == nil {
		t.Error("Latest() must hold the snapshot that was written")
	}
	if _, statErr := os.Stat(cfg.Output.ChartPath); !os.IsNotExist(statErr) {
		t.Error("chart file should not exist")
	}
}

func TestIntegration_Hooks(t *testing.T) {
	var fail atomic.Bool
	upstream := coordinator(t, &fail)
	cfg := testConfig(t, upstream.URL)

	dir := t.TempDir()
	log := filepath.Join(dir, "hooks.log")
	script := filepath.Join(dir, "record.sh")
	body := "#!/bin/bash\necho \"$1 $LGSTATS_HOOK $LGSTATS_TOTAL_JOBS $LGSTATS_OUTPUT_PATH\" >> \"" + log + "\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Hooks.OnSuccess = []config.Hook{{Name: "publish", Command: []string{script, "publish"}}}
	cfg.Hooks.OnError = []config.Hook{{Name: "page", Command: []string{script, "page"}}}

	runner := newTestRunner(t, cfg, nil)
	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	fail.Store(true)
	if _, err := runner.Execute(context.Background(), "cli"); err == nil {
		t.Fatal("Execute() expected error for failing upstream")
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("hooks did not run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		"publish on_success 2 " + cfg.Output.Path,
		"page on_error 0 " + cfg.Output.Path,
	}
	if len(lines) != len(want) {
		t.Fatalf("hook log = %q, want %d lines", lines, len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("hook line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestIntegration_ScheduledRuns(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	st := openStore(t, cfg)
	runner := newTestRunner(t, cfg, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sched := scheduler.New(ctx, quietLogger())
	if err := sched.Add(scheduler.Task{ID: aggregateTaskID, Schedule: "@every 1s"}, runner); err != nil {
		t.Fatalf("Failed to add task: %v", err)
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("Failed to start scheduler: %v", err)
	}

	time.Sleep(2500 * time.Millisecond)

	if err := sched.Stop(); err != nil {
		t.Fatalf("Failed to stop scheduler: %v", err)
	}

	runs, err := st.GetRuns(10)
	if err != nil {
		t.Fatalf("Failed to get runs: %v", err)
	}
	if len(runs) == 0 {
		t.Fatal("No runs recorded")
	}
	for _, run := range runs {
		if run.Trigger != "schedule" || !run.Success {
			t.Errorf("run = %+v, want successful scheduled run", run)
		}
	}
}

func TestRunner_TriggerAndBusy(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/adapter", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(testRoster))
	})
	mux.HandleFunc("GET /api/jobs/days/full/1/{days}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testJobs))
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	cfg := testConfig(t, upstream.URL)
	runner := newTestRunner(t, cfg, nil)

	runID, err := runner.Trigger(context.Background())
	if err != nil || runID == "" {
		t.Fatalf("Trigger() = %q, %v", runID, err)
	}

	if _, err := runner.Trigger(context.Background()); !errors.Is(err, server.ErrBusy) {
		t.Errorf("second Trigger() error = %v, want ErrBusy", err)
	}
	if _, err := runner.Execute(context.Background(), "cli"); !errors.Is(err, server.ErrBusy) {
		t.Errorf("Execute() during a triggered run error = %v, want ErrBusy", err)
	}

	close(release)
	runner.Wait()

	if runner.Latest() == nil {
		t.Fatal("triggered run did not publish a snapshot")
	}
	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Errorf("Execute() after the triggered run error = %v", err)
	}
}

func TestRunner_Preload(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	runner := newTestRunner(t, cfg, nil)

	prev := &snapshot.Snapshot{LastRunTime: "Oct 15,2026 02:10:00"}
	runner.Preload(prev)
	if runner.Latest() != prev {
		t.Fatal("Preload() did not set the snapshot")
	}

	runner.Preload(&snapshot.Snapshot{})
	if runner.Latest() != prev {
		t.Error("Preload() replaced an existing snapshot")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	logger = quietLogger()

	dir := t.TempDir()
	path := filepath.Join(dir, "lgstats.yaml")
	yaml := `
server:
  base_url: "http://coordinator:9999"
window:
  days: 30
  timezone: "UTC"
output:
  path: "/srv/metrics.json"
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().Bool("debug", false, "")
		addConfigFlag(cmd)
		addSourceFlags(cmd)
		return cmd
	}

	t.Run("file only", func(t *testing.T) {
		cmd := newCmd()
		cmd.Flags().Set("config", path)
		cfg, err := loadConfig(cmd)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Server.BaseURL != "http://coordinator:9999" || cfg.Window.Days != 30 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		cmd := newCmd()
		cmd.Flags().Set("config", path)
		cmd.Flags().Set("server", "https://other:443")
		cmd.Flags().Set("days", "7")
		cmd.Flags().Set("output", filepath.Join(dir, "m.json"))
		cmd.Flags().Set("debug", "true")
		cfg, err := loadConfig(cmd)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Server.BaseURL != "https://other:443" || cfg.Window.Days != 7 || cfg.Output.Path != filepath.Join(dir, "m.json") {
			t.Errorf("overrides not applied: %+v", cfg)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
		}
	})

	t.Run("invalid override", func(t *testing.T) {
		cmd := newCmd()
		cmd.Flags().Set("config", path)
		cmd.Flags().Set("days", "0")
		if _, err := loadConfig(cmd); err == nil {
			t.Error("loadConfig() expected error for --days 0")
		}
	})

	t.Run("explicit missing file", func(t *testing.T) {
		cmd := newCmd()
		cmd.Flags().Set("config", filepath.Join(dir, "missing.yaml"))
		if _, err := loadConfig(cmd); err == nil {
			t.Error("loadConfig() expected error for an explicit missing file")
		}
	})
}

func TestBuildFetcher(t *testing.T) {
	logger = quietLogger()
	cfg := testConfig(t, "http://coordinator:9999")

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		addSourceFlags(cmd)
		return cmd
	}

	f, err := buildFetcher(newCmd(), cfg)
	if err != nil {
		t.Fatalf("buildFetcher() error = %v", err)
	}
	if _, ok := f.(*fetcher.HTTPFetcher); !ok {
		t.Errorf("buildFetcher() = %T, want *fetcher.HTTPFetcher", f)
	}

	cmd := newCmd()
	cmd.Flags().Set("roster-file", "adapters.json")
	if _, err := buildFetcher(cmd, cfg); err == nil {
		t.Error("buildFetcher() expected error when only one record file is given")
	}

	cmd.Flags().Set("jobs-file", "jobs.json")
	f, err = buildFetcher(cmd, cfg)
	if err != nil {
		t.Fatalf("buildFetcher() error = %v", err)
	}
	if _, ok := f.(*fetcher.FileFetcher); !ok {
		t.Errorf("buildFetcher() = %T, want *fetcher.FileFetcher", f)
	}
}

func TestRenderShow(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	runner := newTestRunner(t, cfg, nil)
	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var buf bytes.Buffer
	renderShow(&buf, runner.Latest())
	out := buf.String()

	for _, want := range []string{"Oct 16,2026 12:00:00", "alice", "Apple-1", "Zebra-2", "1m20s", "Skipped jobs", "50.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestBusiestDay(t *testing.T) {
	tests := []struct {
		series []int64
		want   string
	}{
		{[]int64{0, 0, 0}, "-"},
		{[]int64{4, 1, 0}, "today"},
		{[]int64{1, 0, 5}, "2d ago"},
		{[]int64{0, 3, 3}, "1d ago"},
	}
	for _, tt := range tests {
		if got := busiestDay(tt.series); got != tt.want {
			t.Errorf("busiestDay(%v) = %q, want %q", tt.series, got, tt.want)
		}
	}
}

func TestSnapshotDocumentIsValidJSON(t *testing.T) {
	upstream := coordinator(t, nil)
	cfg := testConfig(t, upstream.URL)
	runner := newTestRunner(t, cfg, nil)
	if _, err := runner.Execute(context.Background(), "cli"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(cfg.Output.Path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	for _, key := range []string{"top_users_by_job_submitted", "adapter_tasks_spawned_per_day", "job_avg_seed_size_per_day", "diagnostics"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("snapshot missing %q", key)
		}
	}
}
