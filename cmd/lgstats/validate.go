package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/config"
	"github.com/caevv/lgstats/internal/hooks"
	"github.com/caevv/lgstats/internal/scheduler"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate lgstats configuration file",
	Long: `Validate the syntax and semantics of an lgstats configuration file.

This command loads and validates the configuration file without contacting
the job coordinator. It checks for:
  - Valid YAML syntax
  - A valid http(s) base URL
  - A jobs path containing the {days} placeholder
  - A valid cron schedule and timezone
  - A supported store driver
  - Hook commands that resolve to an executable

It then prints the next activations of the schedule.

Example:
  lgstats validate --config ./lgstats.yaml`,
	RunE: validateConfig,
}

func init() {
	addConfigFlag(validateCmd)
	validateCmd.Flags().IntP("next", "n", 3, "Number of upcoming scheduled runs to print")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	next, _ := cmd.Flags().GetInt("next")

	logger.Info("validating configuration", "path", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", configPath,
		"server", cfg.Server.BaseURL,
		"days", cfg.Window.Days,
		"schedule", cfg.Schedule,
		"store_driver", cfg.Store.Driver)

	loc, err := cfg.Window.Location()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := hooks.Validate(hooks.New(logger, 0), cfg.Hooks); err != nil {
		logger.Error("hook validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "\n✓ Configuration is valid: %s\n", configPath)
	fmt.Fprintf(os.Stdout, "  Server: %s\n", cfg.Server.BaseURL)
	fmt.Fprintf(os.Stdout, "  Window: %d days (%s)\n", cfg.Window.Days, loc)
	fmt.Fprintf(os.Stdout, "  Output: %s\n", cfg.Output.Path)
	fmt.Fprintf(os.Stdout, "  Store: %s (%s)\n", cfg.Store.Driver, cfg.Store.Path)
	fmt.Fprintf(os.Stdout, "  Hooks: %d on success, %d on error\n", len(cfg.Hooks.OnSuccess), len(cfg.Hooks.OnError))
	fmt.Fprintf(os.Stdout, "  Schedule: %s\n", cfg.Schedule)

	if next > 0 {
		runs, err := scheduler.NextRuns(cfg.Schedule, time.Now().In(loc), next)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		for _, t := range runs {
			fmt.Fprintf(os.Stdout, "    next: %s\n", t.Format(time.RFC1123))
		}
	}

	return nil
}
