package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caevv/lgstats/internal/snapshot"
)

func sample() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		JobCountByHour:   make([]int64, 24),
		GraphActivityMin: []int64{1, 0, 0},
		GraphActivityMax: []int64{4, 0, 0},
		GraphActivityAvg: []int64{2, 0, 0},
		JobsPerDay:       []int64{3, 1, 0},
		ErrorsPerDay:     []int64{0, 1, 0},
		TaskTotalPerDay:  []int64{9, 2, 0},
		AdapterTasksPerDay: []snapshot.AdapterSeries{
			{Adapter: "PlusBang-1", Data: []int64{5, 1, 0}},
		},
		LastRunTime: "Oct 16,2026 12:00:00",
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sample()))

	html := buf.String()
	assert.Contains(t, html, "Jobs per day")
	assert.Contains(t, html, "Jobs submitted by hour")
	assert.Contains(t, html, "PlusBang-1")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.html")
	require.NoError(t, WriteFile(path, sample()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, WriteFile(filepath.Join(t.TempDir(), "missing", "charts.html"), sample()))
}

func TestDayLabels(t *testing.T) {
	assert.Equal(t, []string{"-2d", "-1d", "today"}, dayLabels(3))
}

func TestLineData_OldestFirst(t *testing.T) {
	data := lineData([]int64{3, 2, 1})
	require.Len(t, data, 3)
	assert.Equal(t, int64(1), data[0].Value)
	assert.Equal(t, int64(3), data[2].Value)
}

func TestBusiest(t *testing.T) {
	var series []snapshot.AdapterSeries
	for i := 0; i < 5; i++ {
		series = append(series, snapshot.AdapterSeries{Adapter: fmt.Sprintf("a-%d", i), Data: []int64{int64(i % 3)}})
	}

	got := busiest(series, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a-1", got[0].Adapter, "ties go to the earlier adapter")
	assert.Equal(t, "a-2", got[1].Adapter)

	assert.Len(t, busiest(series, 10), 5)
}
