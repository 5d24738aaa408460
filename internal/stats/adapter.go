package stats

// AdapterDayStats holds every per-day series of one adapter.
type AdapterDayStats struct {
	Key string // composite name-id

	Tasks        DaySeries
	Errors       DaySeries
	RuntimeTotal DaySeries // seconds, clock-skewed tasks excluded
	RuntimeAvg   DaySeries

	runtimeSamples DaySeries

	spawnedSum     DaySeries
	Spawned        MinMaxSeries
	graphChangeSum DaySeries
	GraphChanges   MinMaxSeries
}

func newAdapterDayStats(key string, days int) *AdapterDayStats {
	return &AdapterDayStats{
		Key:            key,
		Tasks:          NewDaySeries(days),
		Errors:         NewDaySeries(days),
		RuntimeTotal:   NewDaySeries(days),
		RuntimeAvg:     NewDaySeries(days),
		runtimeSamples: NewDaySeries(days),
		spawnedSum:     NewDaySeries(days),
		Spawned:        NewMinMaxSeries(days),
		graphChangeSum: NewDaySeries(days),
		GraphChanges:   NewMinMaxSeries(days),
	}
}

// SpawnedAvg returns the per-day mean tasks spawned per task.
func (s *AdapterDayStats) SpawnedAvg() []int64 {
	return divide(s.spawnedSum, s.Tasks)
}

// GraphChangesAvg returns the per-day mean graph changes per task.
func (s *AdapterDayStats) GraphChangesAvg() []int64 {
	return divide(s.graphChangeSum, s.Tasks)
}

// AdapterAggregator keeps one AdapterDayStats per composite key, in the
// order keys were first seen.
type AdapterAggregator struct {
	days  int
	index map[string]*AdapterDayStats
	order []*AdapterDayStats
}

// NewAdapterAggregator creates an empty aggregator.
func NewAdapterAggregator(days int) *AdapterAggregator {
	return &AdapterAggregator{days: days, index: make(map[string]*AdapterDayStats)}
}

// Seed registers key with all-zero series if it is not known yet.
func (a *AdapterAggregator) Seed(key string) *AdapterDayStats {
	if s, ok := a.index[key]; ok {
		return s
	}
	s := newAdapterDayStats(key, a.days)
	a.index[key] = s
	a.order = append(a.order, s)
	return s
}

// Ingest adds one task at day. A nil history counts as zero spawned tasks
// and zero graph changes.
func (a *AdapterAggregator) Ingest(task TaskRecord, history *HistoryEvent, day int) {
	s := a.Seed(task.AdapterKey())

	s.Tasks[day]++
	if task.Failed() {
		s.Errors[day]++
	}

	if !task.ClockSkew {
		s.RuntimeTotal[day] += seconds(task.Runtime)
		s.runtimeSamples[day]++
		s.RuntimeAvg[day] = s.RuntimeTotal[day] / s.runtimeSamples[day]
	}

	var spawned, changes int64
	if history != nil {
		spawned, changes = history.TasksSpawned, history.GraphChanges
	}
	s.spawnedSum[day] += spawned
	s.Spawned[day].Observe(spawned)
	s.graphChangeSum[day] += changes
	s.GraphChanges[day].Observe(changes)
}

// Stats returns the accumulators in insertion order.
func (a *AdapterAggregator) Stats() []*AdapterDayStats {
	out := make([]*AdapterDayStats, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of distinct adapters seen.
func (a *AdapterAggregator) Len() int {
	return len(a.order)
}
