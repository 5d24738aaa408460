package config

import (
	"fmt"
	"time"
)

// Config represents the top-level configuration structure for lgstats.
type Config struct {
	Server   Server  `yaml:"server"`
	Window   Window  `yaml:"window"`
	Output   Output  `yaml:"output"`
	Schedule string  `yaml:"schedule"` // cron expression used by serve mode
	Store    Store   `yaml:"store"`
	Logging  Logging `yaml:"logging"`
	HTTP     HTTP    `yaml:"http"`
	Hooks    Hooks   `yaml:"hooks"`
}

// Server describes the upstream job coordinator API.
type Server struct {
	BaseURL      string `yaml:"base_url"`
	TimeoutSec   int    `yaml:"timeout_sec"`   // per request
	AdaptersPath string `yaml:"adapters_path"` // optional: roster endpoint
	JobsPath     string `yaml:"jobs_path"`     // optional: job window endpoint, {days} is substituted
}

// Timeout returns the per-request timeout.
func (s Server) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Window controls the aggregation window.
type Window struct {
	Days        int    `yaml:"days"`
	MaxAdapters int    `yaml:"max_adapters"` // advisory: a larger roster is logged, not truncated
	Timezone    string `yaml:"timezone"`     // IANA name or "Local"
}

// Location resolves the configured timezone.
func (w Window) Location() (*time.Location, error) {
	if w.Timezone == "" || w.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", w.Timezone, err)
	}
	return loc, nil
}

// Output lists where a run writes its results.
type Output struct {
	Path        string `yaml:"path"`         // snapshot document
	ChartPath   string `yaml:"chart_path"`   // optional: HTML chart page
	MetricsFile string `yaml:"metrics_file"` // optional: Prometheus textfile
}

// Store configuration for run history persistence.
type Store struct {
	Driver string `yaml:"driver"` // "bbolt" or "json"
	Path   string `yaml:"path"`   // file path for the store
}

// Logging configuration.
type Logging struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Output string `yaml:"output"` // "stderr", "stdout" or a file path
}

// HTTP configures the serve mode listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Hooks lists commands run after an aggregation run.
type Hooks struct {
	TimeoutSec int    `yaml:"timeout_sec"` // per command
	OnSuccess  []Hook `yaml:"on_success"`
	OnError    []Hook `yaml:"on_error"`
}

// Timeout returns the per-command timeout.
func (h Hooks) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// Hook is one external command. Command is executed directly, without a
// shell.
type Hook struct {
	Name    string            `yaml:"name"`
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Label names the hook in logs.
func (h Hook) Label() string {
	if h.Name != "" {
		return h.Name
	}
	if len(h.Command) > 0 {
		return h.Command[0]
	}
	return "unnamed"
}
