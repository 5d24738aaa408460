// Package hooks runs user-configured commands after an aggregation run,
// for example to publish the snapshot to a web root or to page someone
// when a run fails.
package hooks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/caevv/lgstats/internal/config"
)

// Kind selects which hook list runs.
type Kind string

const (
	// OnSuccess runs after the outputs of a successful run were written.
	OnSuccess Kind = "on_success"

	// OnError runs after a failed run.
	OnError Kind = "on_error"
)

func (k Kind) String() string {
	return string(k)
}

// Select returns the hooks of the given kind.
func Select(h config.Hooks, kind Kind) []config.Hook {
	switch kind {
	case OnSuccess:
		return h.OnSuccess
	case OnError:
		return h.OnError
	default:
		return nil
	}
}

// Run executes hooks in order. Every hook runs even when an earlier one
// fails; the first failure is returned.
func Run(ctx context.Context, e *Executor, hooks []config.Hook, params Params) error {
	if len(hooks) == 0 {
		return nil
	}

	e.logger.Debug("executing hooks",
		slog.String("kind", params.Kind.String()),
		slog.Int("count", len(hooks)),
		slog.String("run_id", params.RunID))

	var firstError error
	for i, hook := range hooks {
		result, err := e.Execute(ctx, hook, params)
		if err != nil {
			e.logger.Error("hook execution failed",
				slog.String("hook", hook.Label()),
				slog.String("kind", params.Kind.String()),
				slog.Int("hook_index", i),
				slog.String("error", err.Error()))
			if firstError == nil {
				firstError = err
			}
			continue
		}

		if result.ExitCode != 0 {
			e.logger.Warn("hook returned non-zero exit code",
				slog.String("hook", hook.Label()),
				slog.String("kind", params.Kind.String()),
				slog.Int("hook_index", i),
				slog.Int("exit_code", result.ExitCode),
				slog.String("stderr", result.Stderr))
			if firstError == nil {
				firstError = fmt.Errorf("hook %s exited with code %d", hook.Label(), result.ExitCode)
			}
			continue
		}

		e.logger.Info("hook executed successfully",
			slog.String("hook", hook.Label()),
			slog.String("kind", params.Kind.String()),
			slog.Duration("duration", result.Duration))

		if result.JSONOutput != nil {
			e.logger.Debug("hook output",
				slog.String("hook", hook.Label()),
				slog.Any("output", result.JSONOutput))
		}
	}

	return firstError
}

// Validate checks every configured hook.
func Validate(e *Executor, h config.Hooks) error {
	for _, kind := range []Kind{OnSuccess, OnError} {
		for i, hook := range Select(h, kind) {
			if err := e.Validate(hook); err != nil {
				return fmt.Errorf("invalid %s hook #%d: %w", kind, i, err)
			}
		}
	}
	return nil
}
