package hooks

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caevv/lgstats/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/bash\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testParams() Params {
	return Params{
		Kind:       OnSuccess,
		RunID:      "run-123",
		Trigger:    "schedule",
		OutputPath: "/var/www/data/metrics.json",
		TotalJobs:  42,
		StartTS:    time.Date(2026, 10, 16, 2, 10, 0, 0, time.UTC),
		EndTS:      time.Date(2026, 10, 16, 2, 10, 3, 0, time.UTC),
	}
}

func TestExecutor_Execute(t *testing.T) {
	dir := t.TempDir()
	success := writeScript(t, dir, "success.sh", `echo "published"
echo '{"status":"ok","files":2}'
exit 0
`)
	fail := writeScript(t, dir, "fail.sh", `echo "upload refused" >&2
exit 3
`)
	env := writeScript(t, dir, "env.sh", `echo "$LGSTATS_HOOK $LGSTATS_RUN_ID $LGSTATS_TOTAL_JOBS $LGSTATS_START_TS $TARGET $1"
`)

	executor := New(quietLogger(), 5*time.Second)

	t.Run("successful execution", func(t *testing.T) {
		result, err := executor.Execute(context.Background(), config.Hook{Command: []string{success}}, testParams())
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.ExitCode != 0 {
			t.Errorf("expected exit code 0, got %d", result.ExitCode)
		}
		if result.JSONOutput == nil {
			t.Fatal("expected JSON output to be parsed")
		}
		if status, ok := result.JSONOutput["status"].(string); !ok || status != "ok" {
			t.Errorf("expected status=ok, got %v", result.JSONOutput["status"])
		}
	})

	t.Run("non-zero exit", func(t *testing.T) {
		result, err := executor.Execute(context.Background(), config.Hook{Command: []string{fail}}, testParams())
		if err != nil {
			t.Fatalf("non-zero exit should not be an error: %v", err)
		}
		if result.ExitCode != 3 {
			t.Errorf("expected exit code 3, got %d", result.ExitCode)
		}
		if !strings.Contains(result.Stderr, "upload refused") {
			t.Errorf("expected stderr, got %q", result.Stderr)
		}
	})

	t.Run("environment and arguments", func(t *testing.T) {
		hook := config.Hook{
			Command: []string{env, "--verbose"},
			Env:     map[string]string{"TARGET": "webroot"},
		}
		result, err := executor.Execute(context.Background(), hook, testParams())
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		want := "on_success run-123 42 2026-10-16T02:10:00Z webroot --verbose"
		if got := strings.TrimSpace(result.Stdout); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("missing command", func(t *testing.T) {
		if _, err := executor.Execute(context.Background(), config.Hook{Name: "empty"}, testParams()); err == nil {
			t.Error("expected error for hook without command")
		}
		if _, err := executor.Execute(context.Background(), config.Hook{Command: []string{filepath.Join(dir, "nope")}}, testParams()); err == nil {
			t.Error("expected error for nonexistent command")
		}
	})
}

func TestExecutor_Timeout(t *testing.T) {
	slow := writeScript(t, t.TempDir(), "slow.sh", "exec sleep 5\n")

	executor := New(quietLogger(), 100*time.Millisecond)
	start := time.Now()
	_, err := executor.Execute(context.Background(), config.Hook{Command: []string{slow}}, testParams())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "deadline exceeded") {
		t.Errorf("expected deadline exceeded, got: %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("hook was not killed at the timeout")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	ok := writeScript(t, dir, "ok.sh", "echo done >> \""+marker+"\"\n")
	fail := writeScript(t, dir, "fail.sh", "exit 1\n")

	executor := New(quietLogger(), 5*time.Second)

	t.Run("no hooks", func(t *testing.T) {
		if err := Run(context.Background(), executor, nil, testParams()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("failure does not stop later hooks", func(t *testing.T) {
		hooks := []config.Hook{
			{Name: "first", Command: []string{fail}},
			{Name: "second", Command: []string{ok}},
			{Name: "third", Command: []string{ok}},
		}
		err := Run(context.Background(), executor, hooks, testParams())
		if err == nil {
			t.Fatal("expected error from failing hook")
		}
		if !strings.Contains(err.Error(), "first") {
			t.Errorf("expected first failure to be reported, got: %v", err)
		}

		data, rerr := os.ReadFile(marker)
		if rerr != nil {
			t.Fatalf("read marker: %v", rerr)
		}
		if got := strings.Count(string(data), "done"); got != 2 {
			t.Errorf("expected 2 later hooks to run, got %d", got)
		}
	})
}

func TestSelect(t *testing.T) {
	h := config.Hooks{
		OnSuccess: []config.Hook{{Name: "publish"}},
		OnError:   []config.Hook{{Name: "page"}, {Name: "log"}},
	}

	if got := Select(h, OnSuccess); len(got) != 1 || got[0].Name != "publish" {
		t.Errorf("unexpected on_success hooks: %+v", got)
	}
	if got := Select(h, OnError); len(got) != 2 {
		t.Errorf("expected 2 on_error hooks, got %d", len(got))
	}
	if got := Select(h, Kind("pre_run")); got != nil {
		t.Errorf("expected no hooks for unknown kind, got %+v", got)
	}
}

func TestValidate(t *testing.T) {
	script := writeScript(t, t.TempDir(), "publish.sh", "exit 0\n")
	executor := New(quietLogger(), 0)

	valid := config.Hooks{
		OnSuccess: []config.Hook{{Command: []string{script}}},
		OnError:   []config.Hook{{Command: []string{"sh", "-c", "true"}}},
	}
	if err := Validate(executor, valid); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := config.Hooks{
		OnError: []config.Hook{{Name: "pager", Command: []string{"/nonexistent/pager"}}},
	}
	err := Validate(executor, invalid)
	if err == nil {
		t.Fatal("expected error for unresolvable command")
	}
	if !strings.Contains(err.Error(), "on_error hook #0") {
		t.Errorf("expected hook position in error, got: %v", err)
	}
}

func TestParseJSONOutput(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   bool
	}{
		{name: "empty", stdout: "", want: false},
		{name: "whole output", stdout: `{"status":"ok"}`, want: true},
		{name: "json line among text", stdout: "uploading\n{\"status\":\"ok\"}\ndone", want: true},
		{name: "plain text", stdout: "uploaded 2 files", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseJSONOutput(tt.stdout)
			if (got != nil) != tt.want {
				t.Errorf("parseJSONOutput(%q) = %v, want parsed=%v", tt.stdout, got, tt.want)
			}
		})
	}
}
