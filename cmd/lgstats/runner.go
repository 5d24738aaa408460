package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caevv/lgstats/internal/config"
	"github.com/caevv/lgstats/internal/fetcher"
	"github.com/caevv/lgstats/internal/hooks"
	"github.com/caevv/lgstats/internal/logging"
	"github.com/caevv/lgstats/internal/metrics"
	"github.com/caevv/lgstats/internal/report"
	"github.com/caevv/lgstats/internal/scheduler"
	"github.com/caevv/lgstats/internal/server"
	"github.com/caevv/lgstats/internal/snapshot"
	"github.com/caevv/lgstats/internal/stats"
	"github.com/caevv/lgstats/internal/store"
)

// Runner executes aggregation runs, writes their outputs and records them
// in the run history. At most one run executes at a time.
type Runner struct {
	ctx     context.Context
	cfg     *config.Config
	opts    stats.Options
	fetcher fetcher.Fetcher
	store   store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	latest  atomic.Pointer[snapshot.Snapshot]
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner. ctx bounds runs started through Trigger; st
// may be nil to skip the run history.
func NewRunner(ctx context.Context, cfg *config.Config, f fetcher.Fetcher, st store.Store, m *metrics.Metrics, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}

	loc, err := cfg.Window.Location()
	if err != nil {
		return nil, err
	}

	return &Runner{
		ctx: ctx,
		cfg: cfg,
		opts: stats.Options{
			Days:        cfg.Window.Days,
			MaxAdapters: cfg.Window.MaxAdapters,
			Location:    loc,
		},
		fetcher: f,
		store:   st,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run implements scheduler.Runner.
func (r *Runner) Run(ctx context.Context) error {
	_, err := r.Execute(ctx, "schedule")
	return err
}

// Execute performs one run synchronously.
func (r *Runner) Execute(ctx context.Context, trigger string) (*store.RunRecord, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("run skipped, another run is in progress", "trigger", trigger)
		return nil, server.ErrBusy
	}
	defer r.running.Store(false)

	return r.execute(ctx, scheduler.GenerateRunID(), trigger)
}

// Trigger starts a run in the background and returns its ID.
func (r *Runner) Trigger(_ context.Context) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", server.ErrBusy
	}

	runID := scheduler.GenerateRunID()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		r.execute(r.ctx, runID, "api")
	}()
	return runID, nil
}

// Wait blocks until background runs have returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Latest returns the snapshot of the last successful run.
func (r *Runner) Latest() *snapshot.Snapshot {
	return r.latest.Load()
}

// Preload makes a snapshot from an earlier process available before the
// first run completes.
func (r *Runner) Preload(s *snapshot.Snapshot) {
	r.latest.CompareAndSwap(nil, s)
}

func (r *Runner) execute(ctx context.Context, runID, trigger string) (*store.RunRecord, error) {
	log := logging.ForRun(r.logger, runID, trigger)
	ctx = logging.WithContext(ctx, log)

	start := r.now()
	run := &store.RunRecord{
		RunID:      runID,
		Trigger:    trigger,
		StartTime:  start,
		OutputPath: r.cfg.Output.Path,
	}
	r.save(log, run)

	log.Info("starting aggregation run", "days", r.opts.Days)

	snap, err := stats.NewEngine(r.fetcher, r.opts, log).Run(ctx, start)
	if err == nil {
		err = r.writeOutputs(log, snap)
	}

	run.EndTime = r.now()
	duration := run.EndTime.Sub(start)

	if err != nil {
		run.Error = err.Error()
		r.metrics.ObserveRun(duration, nil, run.EndTime)
		log.Error("aggregation run failed", "duration", duration, "error", err)
	} else {
		run.Success = true
		run.TotalJobCount = snap.TotalJobCount
		run.TotalTaskCount = snap.TotalTaskCount
		run.AdapterCount = len(snap.AdapterTasksPerDay)
		run.Diagnostics = snap.Diagnostics
		r.latest.Store(snap)
		r.metrics.ObserveRun(duration, snap, run.EndTime)
		log.Info("aggregation run succeeded",
			"duration", duration,
			"output", r.cfg.Output.Path,
			"jobs", snap.TotalJobCount,
			"skipped", snap.Diagnostics.Skipped())
	}

	if path := r.cfg.Output.MetricsFile; path != "" {
		if werr := r.metrics.WriteTextfile(path); werr != nil {
			log.Error("failed to write metrics file", "path", path, "error", werr)
		}
	}

	r.save(log, run)
	r.runHooks(ctx, log, run)

	return run, err
}

// runHooks runs the on_success or on_error hooks of a finished run. Hook
// failures are logged and do not change the run outcome.
func (r *Runner) runHooks(ctx context.Context, log *slog.Logger, run *store.RunRecord) {
	kind := hooks.OnSuccess
	if !run.Success {
		kind = hooks.OnError
	}
	list := hooks.Select(r.cfg.Hooks, kind)
	if len(list) == 0 {
		return
	}

	params := hooks.Params{
		Kind:       kind,
		RunID:      run.RunID,
		Trigger:    run.Trigger,
		OutputPath: run.OutputPath,
		ChartPath:  r.cfg.Output.ChartPath,
		Error:      run.Error,
		TotalJobs:  run.TotalJobCount,
		StartTS:    run.StartTime,
		EndTS:      run.EndTime,
	}
	if err := hooks.Run(ctx, hooks.New(log, r.cfg.Hooks.Timeout()), list, params); err != nil {
		log.Warn("post-run hooks reported a failure", "kind", kind.String(), "error", err)
	}
}

// writeOutputs publishes the snapshot. Once it is in place the run counts
// as a success, so a chart failure is only logged.
func (r *Runner) writeOutputs(log *slog.Logger, snap *snapshot.Snapshot) error {
	if err := snapshot.WriteFile(r.cfg.Output.Path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if path := r.cfg.Output.ChartPath; path != "" {
		if err := report.WriteFile(path, snap); err != nil {
			log.Error("failed to write chart page", "path", path, "error", err)
		}
	}
	return nil
}

func (r *Runner) save(log *slog.Logger, run *store.RunRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(run); err != nil {
		log.Error("failed to save run", "error", err)
	}
}
