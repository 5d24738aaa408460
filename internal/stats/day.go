package stats

// DayAggregator accumulates the global per-day series over all jobs.
type DayAggregator struct {
	jobs          DaySeries
	errors        DaySeries
	tasks         DaySeries
	graphActivity DaySeries
	graphRange    MinMaxSeries
	seedSize      DaySeries
}

// NewDayAggregator creates an aggregator for a window of days days.
func NewDayAggregator(days int) *DayAggregator {
	return &DayAggregator{
		jobs:          NewDaySeries(days),
		errors:        NewDaySeries(days),
		tasks:         NewDaySeries(days),
		graphActivity: NewDaySeries(days),
		graphRange:    NewMinMaxSeries(days),
		seedSize:      NewDaySeries(days),
	}
}

// Ingest adds one classified job at its day bucket.
func (a *DayAggregator) Ingest(job JobRecord) {
	i := job.DayBucket
	a.jobs[i]++
	a.errors[i] += job.ErrorCount
	a.tasks[i] += job.TaskCount
	a.graphActivity[i] += job.GraphActivity
	a.graphRange[i].Observe(job.GraphActivity)
	a.seedSize[i] += job.SeedSize
}

func (a *DayAggregator) JobsPerDay() []int64   { return a.jobs.Clone() }
func (a *DayAggregator) ErrorsPerDay() []int64 { return a.errors.Clone() }
func (a *DayAggregator) TasksPerDay() []int64  { return a.tasks.Clone() }

func (a *DayAggregator) GraphActivityMin() []int64 { return a.graphRange.Mins() }
func (a *DayAggregator) GraphActivityMax() []int64 { return a.graphRange.Maxes() }

// GraphActivityAvg returns the per-day mean graph activity, 0 on empty days.
func (a *DayAggregator) GraphActivityAvg() []int64 {
	return divide(a.graphActivity, a.jobs)
}

// AvgSeedSize returns the per-day mean seed size, 0 on empty days.
func (a *DayAggregator) AvgSeedSize() []int64 {
	return divide(a.seedSize, a.jobs)
}

// Totals returns the job, error and task totals over the window.
func (a *DayAggregator) Totals() (jobs, errors, tasks int64) {
	return a.jobs.Sum(), a.errors.Sum(), a.tasks.Sum()
}
