package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/metrics"
	"github.com/caevv/lgstats/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute one snapshot and exit",
	Long: `Fetch the adapter roster and the job window once, aggregate them and
write the snapshot document.

The configuration file is optional; without one the defaults apply and
flags override individual values. The run is recorded in the run history
unless --no-history is given.

Examples:
  lgstats run --server http://coordinator:9999 --output /var/www/data/metrics.json
  lgstats run --config ./lgstats.yaml --days 7
  lgstats run --roster-file adapters.json --jobs-file jobs.json -o metrics.json`,
	RunE: runOnce,
}

func init() {
	addConfigFlag(runCmd)
	addSourceFlags(runCmd)
	runCmd.Flags().Bool("no-history", false, "Do not record the run in the run history store")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	f, err := buildFetcher(cmd, cfg)
	if err != nil {
		return err
	}

	var st store.Store
	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		st, err = store.NewStore(cfg.Store.Driver, cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("failed to close store", "error", err)
			}
		}()
		logger.Debug("store initialized", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
	}

	ctx := setupSignalHandler()

	runner, err := NewRunner(ctx, cfg, f, st, metrics.New(), logger)
	if err != nil {
		return err
	}

	run, err := runner.Execute(ctx, "cli")
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "✓ Snapshot written: %s (%d jobs, %d tasks, %d adapters, %s)\n",
		cfg.Output.Path, run.TotalJobCount, run.TotalTaskCount, run.AdapterCount, run.Duration().Round(time.Millisecond))
	if skipped := run.Diagnostics.Skipped(); skipped > 0 {
		fmt.Fprintf(os.Stdout, "  Skipped malformed records: %d\n", skipped)
	}
	return nil
}
