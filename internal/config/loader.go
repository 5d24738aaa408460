package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/caevv/lgstats/internal/scheduler"
)

// Defaults applied to optional fields.
const (
	DefaultBaseURL      = "http://localhost:9999"
	DefaultTimeoutSec   = 30
	DefaultDays         = 30
	DefaultMaxAdapters  = 50
	DefaultOutputPath   = "./metrics.json"
	DefaultSchedule     = "10 2 * * *"
	DefaultStorePath    = "./.lgstats.db"
	DefaultHTTPAddr     = ":8080"
	DefaultAdaptersPath = "/api/adapter"
	DefaultJobsPath     = "/api/jobs/days/full/1/{days}"
	DefaultHookTimeout  = 60
)

// LoadConfig loads and validates an lgstats configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Finalize applies defaults to a config built in code (for example from
// flags) and validates it.
func Finalize(cfg *Config) error {
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server section
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if cfg.Server.TimeoutSec == 0 {
		cfg.Server.TimeoutSec = DefaultTimeoutSec
	}
	if cfg.Server.AdaptersPath == "" {
		cfg.Server.AdaptersPath = DefaultAdaptersPath
	}
	if cfg.Server.JobsPath == "" {
		cfg.Server.JobsPath = DefaultJobsPath
	}

	// Window section
	if cfg.Window.Days == 0 {
		cfg.Window.Days = DefaultDays
	}
	if cfg.Window.MaxAdapters == 0 {
		cfg.Window.MaxAdapters = DefaultMaxAdapters
	}
	if cfg.Window.Timezone == "" {
		cfg.Window.Timezone = "Local"
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = DefaultOutputPath
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}

	// Store section
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "bbolt"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = DefaultHTTPAddr
	}

	if cfg.Hooks.TimeoutSec == 0 {
		cfg.Hooks.TimeoutSec = DefaultHookTimeout
	}
}

// validate checks the configuration for errors and inconsistencies.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server.base_url must be an http(s) URL, got %q", cfg.Server.BaseURL)
	}
	if cfg.Server.TimeoutSec < 0 {
		return fmt.Errorf("server.timeout_sec must be non-negative")
	}
	if !strings.Contains(cfg.Server.JobsPath, "{days}") {
		return fmt.Errorf("server.jobs_path must contain {days}")
	}

	if cfg.Window.Days < 1 {
		return fmt.Errorf("window.days must be at least 1")
	}
	if cfg.Window.MaxAdapters < 0 {
		return fmt.Errorf("window.max_adapters must be non-negative")
	}
	if _, err := cfg.Window.Location(); err != nil {
		return fmt.Errorf("window.timezone: %w", err)
	}

	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	// Validate store driver
	validDrivers := map[string]bool{
		"bbolt": true,
		"json":  true,
	}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("invalid store driver: %s (must be 'bbolt' or 'json')", cfg.Store.Driver)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (must be 'json' or 'text')", cfg.Logging.Format)
	}

	if cfg.Hooks.TimeoutSec < 0 {
		return fmt.Errorf("hooks.timeout_sec must be non-negative")
	}
	for kind, list := range map[string][]Hook{"on_success": cfg.Hooks.OnSuccess, "on_error": cfg.Hooks.OnError} {
		for i, h := range list {
			if len(h.Command) == 0 || strings.TrimSpace(h.Command[0]) == "" {
				return fmt.Errorf("hooks.%s[%d]: command is required", kind, i)
			}
		}
	}

	return nil
}

// ValidateSchedule checks if a schedule expression is valid. It accepts
// everything the scheduler accepts: cron expressions with 5 or 6 fields,
// @-prefixed shortcuts, @every intervals and "every 15m" style intervals.
func ValidateSchedule(schedule string) error {
	_, err := scheduler.ParseSchedule(schedule)
	return err
}
