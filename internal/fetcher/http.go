package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caevv/lgstats/internal/logging"
)

const (
	// DefaultAdaptersPath is the roster endpoint.
	DefaultAdaptersPath = "/api/adapter"

	// DefaultJobsPath is the full job window endpoint; {days} is replaced by
	// the window size.
	DefaultJobsPath = "/api/jobs/days/full/1/{days}"

	defaultTimeout = 30 * time.Second
)

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	BaseURL      string
	AdaptersPath string
	JobsPath     string
	Timeout      time.Duration
}

// HTTPFetcher fetches records from the coordinator's REST API.
type HTTPFetcher struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates a fetcher. Empty paths and a zero timeout take
// their defaults.
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AdaptersPath == "" {
		cfg.AdaptersPath = DefaultAdaptersPath
	}
	if cfg.JobsPath == "" {
		cfg.JobsPath = DefaultJobsPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Roster fetches and decodes the adapter roster.
func (f *HTTPFetcher) Roster(ctx context.Context) (Roster, error) {
	url := f.cfg.BaseURL + f.cfg.AdaptersPath
	body, err := f.get(ctx, "roster", url)
	if err != nil {
		return nil, err
	}

	roster, err := DecodeRoster(body)
	if err != nil {
		return nil, &FetchError{Op: "roster", URL: url, Err: err}
	}

	f.log(ctx).Info("fetched adapter roster", "url", url, "adapters", len(roster))
	return roster, nil
}

// Jobs fetches and decodes the job window for the last days days.
func (f *HTTPFetcher) Jobs(ctx context.Context, days int) (JobWindow, error) {
	url := f.cfg.BaseURL + strings.ReplaceAll(f.cfg.JobsPath, "{days}", strconv.Itoa(days))
	body, err := f.get(ctx, "jobs", url)
	if err != nil {
		return nil, err
	}

	window, err := DecodeJobWindow(body)
	if err != nil {
		return nil, &FetchError{Op: "jobs", URL: url, Err: err}
	}

	f.log(ctx).Info("fetched job window", "url", url, "days", days, "jobs", len(window))
	return window, nil
}

func (f *HTTPFetcher) get(ctx context.Context, op, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Op: op, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: op, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	f.log(ctx).Debug("http fetch completed",
		"op", op,
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())

	return body, nil
}

// log returns the run logger carried by ctx, falling back to the fetcher's.
func (f *HTTPFetcher) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, f.logger)
}
