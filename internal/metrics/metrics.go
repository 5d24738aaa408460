// Package metrics exposes Prometheus metrics about aggregation runs.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caevv/lgstats/internal/snapshot"
)

const namespace = "lgstats"

// Metrics holds the run metrics and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	RunDurationSeconds  prometheus.Histogram
	SkippedRecordsTotal *prometheus.CounterVec
	ClampedEventsTotal  prometheus.Counter
	LastSuccess         prometheus.Gauge
	JobsAggregated      prometheus.Gauge
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Aggregation runs by result",
			},
			[]string{"result"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of an aggregation run, fetches included",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		SkippedRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_records_total",
				Help:      "Malformed records excluded from aggregation",
			},
			[]string{"kind"},
		),
		ClampedEventsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "clamped_events_total",
				Help:      "Timestamps that fell outside the day window",
			},
		),
		LastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
		JobsAggregated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_aggregated",
				Help:      "Jobs counted by the last successful run",
			},
		),
	}
}

// ObserveRun records one run. snap is nil when the run failed.
func (m *Metrics) ObserveRun(duration time.Duration, snap *snapshot.Snapshot, finished time.Time) {
	m.RunDurationSeconds.Observe(duration.Seconds())

	if snap == nil {
		m.RunsTotal.WithLabelValues("failure").Inc()
		return
	}

	m.RunsTotal.WithLabelValues("success").Inc()
	m.SkippedRecordsTotal.WithLabelValues("job").Add(float64(snap.Diagnostics.SkippedJobs))
	m.SkippedRecordsTotal.WithLabelValues("task").Add(float64(snap.Diagnostics.SkippedTasks))
	m.ClampedEventsTotal.Add(float64(snap.Diagnostics.ClampedEvents))
	m.LastSuccess.Set(float64(finished.Unix()))
	m.JobsAggregated.Set(float64(snap.TotalJobCount))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
