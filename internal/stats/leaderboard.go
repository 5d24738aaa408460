package stats

import "sort"

// UserCount is one leaderboard row.
type UserCount struct {
	User  string
	Count int64
}

// Leaderboard tallies jobs per submitting user.
type Leaderboard struct {
	index  map[string]int
	counts []UserCount // first-encountered order
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{index: make(map[string]int)}
}

// Ingest counts one job for user.
func (l *Leaderboard) Ingest(user string) {
	i, ok := l.index[user]
	if !ok {
		i = len(l.counts)
		l.index[user] = i
		l.counts = append(l.counts, UserCount{User: user})
	}
	l.counts[i].Count++
}

// Top returns at most k users by descending count. Ties keep the order in
// which users were first ingested.
func (l *Leaderboard) Top(k int) []UserCount {
	sorted := make([]UserCount, len(l.counts))
	copy(sorted, l.counts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})
	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Count returns the tally for user.
func (l *Leaderboard) Count(user string) int64 {
	if i, ok := l.index[user]; ok {
		return l.counts[i].Count
	}
	return 0
}
