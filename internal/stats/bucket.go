package stats

import "time"

const day = 24 * time.Hour

// Bucketer maps timestamps to day offsets relative to a pinned now.
// Offsets outside [0, days-1] are clamped to the nearest bound and counted.
type Bucketer struct {
	now     time.Time
	days    int
	clamped int
}

// NewBucketer creates a Bucketer for a window of days days ending at now.
func NewBucketer(now time.Time, days int) *Bucketer {
	if days < 1 {
		days = 1
	}
	return &Bucketer{now: now, days: days}
}

// Offset returns floor((now - ts) / 24h) without clamping. Timestamps in the
// future give negative offsets.
func (b *Bucketer) Offset(ts time.Time) int {
	diff := b.now.Sub(ts)
	offset := diff / day
	if diff < 0 && diff%day != 0 {
		offset--
	}
	return int(offset)
}

// Bucket returns the clamped day offset of ts.
func (b *Bucketer) Bucket(ts time.Time) int {
	offset := b.Offset(ts)
	switch {
	case offset < 0:
		b.clamped++
		return 0
	case offset >= b.days:
		b.clamped++
		return b.days - 1
	}
	return offset
}

// Clamped returns how many timestamps fell outside the window so far.
func (b *Bucketer) Clamped() int {
	return b.clamped
}

// Days returns the window size.
func (b *Bucketer) Days() int {
	return b.days
}
