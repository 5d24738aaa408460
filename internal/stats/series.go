// Package stats classifies job records into day buckets and accumulates the
// per-day, per-adapter and per-user statistics that make up a snapshot.
//
// Everything here is a pure function of the fetched records, a pinned "now"
// and the window size. Accumulators are owned by a single aggregation and
// are not safe for concurrent use.
package stats

// DaySeries holds one value per day bucket; index 0 is today.
type DaySeries []int64

// NewDaySeries returns a zero-filled series of length days.
func NewDaySeries(days int) DaySeries {
	return make(DaySeries, days)
}

// Sum returns the total over all buckets.
func (s DaySeries) Sum() int64 {
	var total int64
	for _, v := range s {
		total += v
	}
	return total
}

// Clone returns a copy that does not share storage with s.
func (s DaySeries) Clone() []int64 {
	out := make([]int64, len(s))
	copy(out, s)
	return out
}

// divide returns num[i] / den[i] per bucket, 0 where den[i] is 0.
func divide(num, den DaySeries) []int64 {
	out := make([]int64, len(num))
	for i := range num {
		if den[i] > 0 {
			out[i] = num[i] / den[i]
		}
	}
	return out
}

// MinMax tracks a running minimum and maximum with an explicit "no
// observation yet" state, so an observed 0 is a real minimum.
type MinMax struct {
	min int64
	max int64
	set bool
}

// Observe records one value.
func (m *MinMax) Observe(v int64) {
	if !m.set {
		m.min, m.max, m.set = v, v, true
		return
	}
	if v < m.min {
		m.min = v
	}
	if v > m.max {
		m.max = v
	}
}

// IsSet reports whether any value was observed.
func (m MinMax) IsSet() bool { return m.set }

// Min returns the minimum, or 0 when nothing was observed.
func (m MinMax) Min() int64 { return m.min }

// Max returns the maximum, or 0 when nothing was observed.
func (m MinMax) Max() int64 { return m.max }

// MinMaxSeries is one MinMax per day bucket.
type MinMaxSeries []MinMax

// NewMinMaxSeries returns an unset series of length days.
func NewMinMaxSeries(days int) MinMaxSeries {
	return make(MinMaxSeries, days)
}

// Mins returns the per-day minima, 0 for days without observations.
func (s MinMaxSeries) Mins() []int64 {
	out := make([]int64, len(s))
	for i, m := range s {
		out[i] = m.Min()
	}
	return out
}

// Maxes returns the per-day maxima, 0 for days without observations.
func (s MinMaxSeries) Maxes() []int64 {
	out := make([]int64, len(s))
	for i, m := range s {
		out[i] = m.Max()
	}
	return out
}
