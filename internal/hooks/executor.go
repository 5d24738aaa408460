package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/caevv/lgstats/internal/config"
)

// Executor runs hook commands.
type Executor struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Params describes the run a hook is invoked for. Each field is exported to
// the command as an LGSTATS_* environment variable.
type Params struct {
	Kind       Kind
	RunID      string
	Trigger    string
	OutputPath string
	ChartPath  string
	Error      string
	TotalJobs  int64
	StartTS    time.Time
	EndTS      time.Time
}

// Result contains the outcome of one hook command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration

	// JSONOutput is the first JSON object printed on stdout, if any.
	JSONOutput map[string]any
}

// New creates an executor. A zero timeout disables the per-command limit.
func New(logger *slog.Logger, timeout time.Duration) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:  logger,
		timeout: timeout,
	}
}

// Execute runs one hook. A non-zero exit is reported in the result, not as
// an error; errors mean the command could not be run or was killed.
func (e *Executor) Execute(ctx context.Context, hook config.Hook, params Params) (*Result, error) {
	if len(hook.Command) == 0 || hook.Command[0] == "" {
		return nil, fmt.Errorf("hook %s has no command", hook.Label())
	}

	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, hook.Command[0], hook.Command[1:]...)
	cmd.Env = buildEnvironment(hook, params)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("executing hook",
		slog.String("hook", hook.Label()),
		slog.String("kind", params.Kind.String()),
		slog.String("run_id", params.RunID))

	startTime := time.Now()
	execErr := cmd.Run()
	duration := time.Since(startTime)

	exitCode := 0
	if execErr != nil {
		var exitErr *exec.ExitError
		switch {
		case execCtx.Err() != nil:
			return nil, fmt.Errorf("hook %s killed: %w", hook.Label(), execCtx.Err())
		case errors.As(execErr, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("hook %s failed: %w", hook.Label(), execErr)
		}
	}

	result := &Result{
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Duration:   duration,
		JSONOutput: parseJSONOutput(stdout.String()),
	}

	if result.Stderr != "" {
		e.logger.Debug("hook stderr",
			slog.String("hook", hook.Label()),
			slog.String("stderr", result.Stderr))
	}

	return result, nil
}

// Validate checks that the hook command can be resolved.
func (e *Executor) Validate(hook config.Hook) error {
	if len(hook.Command) == 0 || hook.Command[0] == "" {
		return fmt.Errorf("hook %s has no command", hook.Label())
	}
	if _, err := exec.LookPath(hook.Command[0]); err != nil {
		return fmt.Errorf("hook %s: %w", hook.Label(), err)
	}
	return nil
}

func buildEnvironment(hook config.Hook, params Params) []string {
	env := os.Environ()

	vars := map[string]string{
		"LGSTATS_HOOK":        params.Kind.String(),
		"LGSTATS_RUN_ID":      params.RunID,
		"LGSTATS_TRIGGER":     params.Trigger,
		"LGSTATS_OUTPUT_PATH": params.OutputPath,
		"LGSTATS_CHART_PATH":  params.ChartPath,
		"LGSTATS_ERROR":       params.Error,
		"LGSTATS_TOTAL_JOBS":  strconv.FormatInt(params.TotalJobs, 10),
		"LGSTATS_START_TS":    formatTimestamp(params.StartTS),
		"LGSTATS_END_TS":      formatTimestamp(params.EndTS),
	}
	for k, v := range hook.Env {
		vars[k] = v
	}

	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

// parseJSONOutput returns stdout as a JSON object, or the first line that
// parses as one.
func parseJSONOutput(stdout string) map[string]any {
	if stdout == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err == nil {
		return result
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
