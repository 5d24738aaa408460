package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caevv/lgstats/internal/metrics"
	"github.com/caevv/lgstats/internal/scheduler"
	"github.com/caevv/lgstats/internal/server"
	"github.com/caevv/lgstats/internal/snapshot"
	"github.com/caevv/lgstats/internal/store"
)

const aggregateTaskID = "aggregate"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Recompute snapshots on a schedule and serve them over HTTP",
	Long: `Run the aggregation on the configured cron schedule and serve the
latest snapshot, the run history, Prometheus metrics and a chart page.

Endpoints:
  GET  /               dashboard
  GET  /charts         chart page of the latest snapshot
  GET  /api/snapshot   latest snapshot document
  GET  /api/health     health and last successful run
  GET  /api/runs       run history
  POST /api/runs       start a run now
  GET  /api/runs/{id}  one run
  GET  /api/tasks      scheduled tasks and their next activation
  GET  /metrics        Prometheus metrics

Example:
  lgstats serve --config ./lgstats.yaml --addr :8080`,
	RunE: runServer,
}

func init() {
	addConfigFlag(serveCmd)
	addSourceFlags(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "HTTP server address (overrides config)")
	serveCmd.Flags().Bool("run-now", false, "Run once at startup instead of waiting for the schedule")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if changed(cmd, "addr") {
		cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
	}

	closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Info("starting lgstats in serve mode",
		"server", cfg.Server.BaseURL,
		"schedule", cfg.Schedule,
		"days", cfg.Window.Days,
		"addr", cfg.HTTP.Addr)

	f, err := buildFetcher(cmd, cfg)
	if err != nil {
		return err
	}

	st, err := store.NewStore(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	logger.Info("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)

	ctx := setupSignalHandler()
	m := metrics.New()

	runner, err := NewRunner(ctx, cfg, f, st, m, logger)
	if err != nil {
		return err
	}

	// Serve the previous snapshot until the first run completes.
	if prev, err := snapshot.ReadFile(cfg.Output.Path); err == nil {
		runner.Preload(prev)
		logger.Info("loaded previous snapshot", "path", cfg.Output.Path, "last_run_time", prev.LastRunTime)
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring unreadable previous snapshot", "path", cfg.Output.Path, "error", err)
	}

	sched := scheduler.New(ctx, logger)
	task := scheduler.Task{
		ID:       aggregateTaskID,
		Schedule: cfg.Schedule,
		Timeout:  3 * cfg.Server.Timeout(),
	}
	if err := sched.Add(task, runner); err != nil {
		return fmt.Errorf("failed to schedule aggregation: %w", err)
	}

	srv := server.New(cfg.HTTP.Addr, server.Deps{
		Store:     server.NewStoreAdapter(st),
		Scheduler: server.NewSchedulerAdapter(sched),
		Engine:    runner,
		Metrics:   m.Handler(),
	}, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting scheduler...")
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler error: %w", err)
		}
		<-gCtx.Done()
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
		if _, err := runner.Trigger(gCtx); err != nil {
			logger.Warn("startup run not started", "error", err)
		}
	}

	// Shutdown handler
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down gracefully...")

		if err := sched.Stop(); err != nil {
			logger.Error("error stopping scheduler", "error", err)
		}
		runner.Wait()

		if err := srv.Stop(context.Background()); err != nil {
			logger.Error("error stopping server", "error", err)
		}
		return nil
	})

	logger.Info("lgstats serve mode started successfully",
		"dashboard_url", fmt.Sprintf("http://localhost%s", cfg.HTTP.Addr))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error during execution", "error", err)
		return err
	}

	logger.Info("lgstats stopped")
	return nil
}
