package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caevv/lgstats/internal/fetcher"
	"github.com/caevv/lgstats/internal/snapshot"
)

const (
	DefaultDays        = 30
	DefaultMaxAdapters = 50
)

// Options control one aggregation.
type Options struct {
	// Days is the window size N. Defaults to DefaultDays.
	Days int
	// MaxAdapters is the advisory roster size cap. A larger roster is logged
	// but still aggregated in full.
	MaxAdapters int
	// Location is used for text timestamps, the hourly histogram and
	// last_run_time. Defaults to time.Local.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.Days < 1 {
		o.Days = DefaultDays
	}
	if o.MaxAdapters < 1 {
		o.MaxAdapters = DefaultMaxAdapters
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Engine fetches the roster and job window and aggregates them into a
// snapshot. Every Run builds its own accumulators, so one Engine may serve
// concurrent runs.
type Engine struct {
	fetcher fetcher.Fetcher
	opts    Options
	logger  *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(f fetcher.Fetcher, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fetcher: f, opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run fetches both inputs and aggregates them relative to now. A fetch
// failure aborts the run and no snapshot is returned.
func (e *Engine) Run(ctx context.Context, now time.Time) (*snapshot.Snapshot, error) {
	roster, err := e.fetcher.Roster(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}

	window, err := e.fetcher.Jobs(ctx, e.opts.Days)
	if err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}

	return Aggregate(roster, window, now, e.opts, e.logger), nil
}

// Aggregate is the pure part of a run: the result depends only on roster,
// window, now and opts.
func Aggregate(roster fetcher.Roster, window fetcher.JobWindow, now time.Time, opts Options, logger *slog.Logger) *snapshot.Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	if len(roster) > opts.MaxAdapters {
		logger.Warn("adapter roster exceeds cap",
			"adapters", len(roster),
			"max_adapters", opts.MaxAdapters)
	}

	a := newAggregation(now, opts, logger)
	for _, ad := range roster {
		name := ad.DisplayName()
		a.adapterNames = append(a.adapterNames, name)
		a.adapters.Seed(name)
	}
	for _, bundle := range window {
		a.ingestBundle(bundle)
	}

	s := a.snapshot()
	logger.Info("aggregation complete",
		"jobs", s.TotalJobCount,
		"tasks", s.TotalTaskCount,
		"adapters", len(s.AdapterTasksPerDay),
		"skipped_jobs", s.Diagnostics.SkippedJobs,
		"skipped_tasks", s.Diagnostics.SkippedTasks,
		"clamped_events", s.Diagnostics.ClampedEvents)
	return s
}

// aggregation is the state of a single run.
type aggregation struct {
	now    time.Time
	opts   Options
	logger *slog.Logger

	bucketer    *Bucketer
	classifier  *Classifier
	days        *DayAggregator
	adapters    *AdapterAggregator
	leaderboard *Leaderboard

	adapterNames []string
	byHour       [24]int64
	runtimeSum   int64
	runtimeN     int64
	diag         snapshot.Diagnostics
}

func newAggregation(now time.Time, opts Options, logger *slog.Logger) *aggregation {
	b := NewBucketer(now, opts.Days)
	return &aggregation{
		now:          now,
		opts:         opts,
		logger:       logger,
		bucketer:     b,
		classifier:   NewClassifier(now, opts.Location, b),
		days:         NewDayAggregator(opts.Days),
		adapters:     NewAdapterAggregator(opts.Days),
		leaderboard:  NewLeaderboard(),
		adapterNames: []string{},
	}
}

func (a *aggregation) ingestBundle(bundle fetcher.JobBundle) {
	if bundle.Err != nil {
		a.diag.SkippedJobs++
		a.diag.SkippedTasks += len(bundle.Tasks) + bundle.BadTasks
		a.logger.Warn("skipping undecodable job", "key", bundle.Key, "error", bundle.Err)
		return
	}

	job, err := a.classifier.Job(bundle.Job)
	if err != nil {
		a.diag.SkippedJobs++
		a.diag.SkippedTasks += len(bundle.Tasks) + bundle.BadTasks
		a.logger.Warn("skipping job", "key", bundle.Key, "error", err)
		return
	}

	if job.ClockSkew {
		a.diag.ClockSkewJobs++
		a.logger.Debug("job runtime is negative", "job_id", job.JobID,
			"start", job.StartTime, "end", job.EndTime)
	} else {
		a.runtimeSum += seconds(job.Runtime)
		a.runtimeN++
	}
	if job.AmbiguousOwner {
		a.diag.AmbiguousOwnerJobs++
		a.logger.Debug("job has several owner roles", "job_id", job.JobID, "user", job.User)
	}

	a.days.Ingest(job)
	a.leaderboard.Ingest(job.User)
	a.byHour[job.StartTime.In(a.opts.Location).Hour()]++

	history := make(map[string]HistoryEvent, len(bundle.History))
	for _, h := range bundle.History {
		if h.TaskID == "" {
			continue
		}
		history[h.TaskID] = NewHistoryEvent(h)
	}

	a.diag.SkippedTasks += bundle.BadTasks
	for _, raw := range bundle.Tasks {
		task, err := a.classifier.Task(raw)
		if err != nil {
			a.diag.SkippedTasks++
			var mre *MalformedRecordError
			if errors.As(err, &mre) {
				a.logger.Debug("skipping task", "job_id", job.JobID, "field", mre.Field, "error", err)
			}
			continue
		}
		if task.ClockSkew {
			a.diag.ClockSkewTasks++
		}

		var h *HistoryEvent
		if ev, ok := history[task.TaskID]; ok {
			h = &ev
		}
		// Tasks are bucketed by their parent job's start day.
		a.adapters.Ingest(task, h, job.DayBucket)
	}
}

func (a *aggregation) snapshot() *snapshot.Snapshot {
	jobs, errs, tasks := a.days.Totals()

	var avgJobTime int64
	if a.runtimeN > 0 {
		avgJobTime = a.runtimeSum / a.runtimeN
	}

	top := a.leaderboard.Top(snapshot.TopUsers)
	board := make(snapshot.Leaderboard, len(top))
	for i, uc := range top {
		board[i] = snapshot.UserCount{User: uc.User, Count: uc.Count}
	}

	stats := a.adapters.Stats()
	tasksPerDay := make([]snapshot.AdapterSeries, len(stats))
	errorsPerDay := make([]snapshot.AdapterSeries, len(stats))
	runtimePerDay := make([]snapshot.AdapterSeries, len(stats))
	spawned := make([]snapshot.AdapterRange, len(stats))
	changes := make([]snapshot.AdapterRange, len(stats))
	for i, s := range stats {
		tasksPerDay[i] = snapshot.AdapterSeries{Adapter: s.Key, Data: s.Tasks.Clone()}
		errorsPerDay[i] = snapshot.AdapterSeries{Adapter: s.Key, Data: s.Errors.Clone()}
		runtimePerDay[i] = snapshot.AdapterSeries{Adapter: s.Key, Data: s.RuntimeAvg.Clone()}
		spawned[i] = snapshot.AdapterRange{
			Adapter: s.Key,
			Avg:     s.SpawnedAvg(),
			Min:     s.Spawned.Mins(),
			Max:     s.Spawned.Maxes(),
		}
		changes[i] = snapshot.AdapterRange{
			Adapter: s.Key,
			Avg:     s.GraphChangesAvg(),
			Min:     s.GraphChanges.Mins(),
			Max:     s.GraphChanges.Maxes(),
		}
	}

	diag := a.diag
	diag.WindowDays = a.opts.Days
	diag.ClampedEvents = a.bucketer.Clamped()

	return &snapshot.Snapshot{
		TopUsers:                  board,
		Adapters:                  append([]string{}, a.adapterNames...),
		TotalJobCount:             jobs,
		TotalErrorCount:           errs,
		TotalTaskCount:            tasks,
		AvgJobTime:                avgJobTime,
		JobCountByHour:            append([]int64{}, a.byHour[:]...),
		GraphActivityMin:          a.days.GraphActivityMin(),
		GraphActivityMax:          a.days.GraphActivityMax(),
		GraphActivityAvg:          a.days.GraphActivityAvg(),
		AdapterTasksPerDay:        tasksPerDay,
		AdapterTasksSpawnedPerDay: spawned,
		AdapterErrorsPerDay:       errorsPerDay,
		AdapterAvgRuntimeDay:      runtimePerDay,
		JobsPerDay:                a.days.JobsPerDay(),
		ErrorsPerDay:              a.days.ErrorsPerDay(),
		TaskTotalPerDay:           a.days.TasksPerDay(),
		JobAvgSeedSizePerDay:      a.days.AvgSeedSize(),
		LastRunTime:               a.now.In(a.opts.Location).Format(fetcher.TimeLayout),
		AdapterGraphChangesPerDay: changes,
		Diagnostics:               diag,
	}
}
