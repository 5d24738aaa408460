package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/config"
	"github.com/caevv/lgstats/internal/fetcher"
	"github.com/caevv/lgstats/internal/logging"
)

const defaultConfigPath = "lgstats.yaml"

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", defaultConfigPath, "Path to configuration file")
}

// addSourceFlags registers the flags that override where records come
// from and where the snapshot goes.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("server", "s", "", "Base URL of the job coordinator API (overrides config)")
	cmd.Flags().StringP("output", "o", "", "Snapshot output path (overrides config)")
	cmd.Flags().IntP("days", "d", 0, "Number of days in the window (overrides config)")
	cmd.Flags().String("roster-file", "", "Read the adapter roster from a file instead of the API")
	cmd.Flags().String("jobs-file", "", "Read the job window from a file instead of the API")
}

// loadConfig reads the config named by --config and applies flag
// overrides. A missing file is only an error when --config was given
// explicitly; otherwise the defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		logger.Debug("no configuration file, using defaults", "path", path)
		cfg = &config.Config{}
	} else {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if changed(cmd, "server") {
		cfg.Server.BaseURL, _ = cmd.Flags().GetString("server")
	}
	if changed(cmd, "output") {
		cfg.Output.Path, _ = cmd.Flags().GetString("output")
	}
	if changed(cmd, "days") {
		cfg.Window.Days, _ = cmd.Flags().GetInt("days")
		if cfg.Window.Days < 1 {
			return nil, fmt.Errorf("--days must be at least 1")
		}
	}
	if debugEnabled(cmd) {
		cfg.Logging.Level = "debug"
	}

	if err := config.Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// setupLogger replaces the global logger with one built from the logging
// section of cfg.
func setupLogger(cfg *config.Config) (io.Closer, error) {
	l, closer, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	slog.SetDefault(l)
	return closer, nil
}

// buildFetcher returns a file fetcher when both record files are given and
// the HTTP fetcher otherwise.
func buildFetcher(cmd *cobra.Command, cfg *config.Config) (fetcher.Fetcher, error) {
	rosterFile, _ := cmd.Flags().GetString("roster-file")
	jobsFile, _ := cmd.Flags().GetString("jobs-file")

	switch {
	case rosterFile != "" && jobsFile != "":
		logger.Info("reading records from files", "roster_file", rosterFile, "jobs_file", jobsFile)
		return fetcher.NewFileFetcher(rosterFile, jobsFile), nil
	case rosterFile != "" || jobsFile != "":
		return nil, fmt.Errorf("--roster-file and --jobs-file must be used together")
	}

	return fetcher.NewHTTPFetcher(fetcher.HTTPConfig{
		BaseURL:      cfg.Server.BaseURL,
		AdaptersPath: cfg.Server.AdaptersPath,
		JobsPath:     cfg.Server.JobsPath,
		Timeout:      cfg.Server.Timeout(),
	}, logger), nil
}
