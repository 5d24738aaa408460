// Package report renders a snapshot as a standalone HTML page of charts.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/caevv/lgstats/internal/snapshot"
)

const (
	chartWidth  = "1100px"
	chartHeight = "420px"

	// maxAdapterSeries bounds the per-adapter chart; the busiest adapters
	// are drawn.
	maxAdapterSeries = 12
)

// Render writes the chart page for s to w.
func Render(w io.Writer, s *snapshot.Snapshot) error {
	page := components.NewPage()
	page.AddCharts(
		dailyChart(s),
		graphActivityChart(s),
		hourlyChart(s),
		adapterTasksChart(s),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// WriteFile renders s into the file at path.
func WriteFile(path string, s *snapshot.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}

	if err := Render(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// dayLabels returns x-axis labels oldest first; the series are reversed to
// match by lineData.
func dayLabels(n int) []string {
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		offset := n - 1 - i
		if offset == 0 {
			labels[i] = "today"
		} else {
			labels[i] = "-" + strconv.Itoa(offset) + "d"
		}
	}
	return labels
}

func lineData(series []int64) []opts.LineData {
	out := make([]opts.LineData, len(series))
	for i, v := range series {
		out[len(series)-1-i] = opts.LineData{Value: v}
	}
	return out
}

func newLine(title, subtitle string, days int) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)
	line.SetXAxis(dayLabels(days))
	return line
}

func dailyChart(s *snapshot.Snapshot) *charts.Line {
	line := newLine("Jobs per day", "Generated "+s.LastRunTime, len(s.JobsPerDay))
	line.AddSeries("jobs", lineData(s.JobsPerDay)).
		AddSeries("errors", lineData(s.ErrorsPerDay)).
		AddSeries("tasks", lineData(s.TaskTotalPerDay))
	return line
}

func graphActivityChart(s *snapshot.Snapshot) *charts.Line {
	line := newLine("Graph activity", "", len(s.GraphActivityAvg))
	line.AddSeries("min", lineData(s.GraphActivityMin)).
		AddSeries("avg", lineData(s.GraphActivityAvg),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)})).
		AddSeries("max", lineData(s.GraphActivityMax))
	return line
}

func hourlyChart(s *snapshot.Snapshot) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Jobs submitted by hour"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	labels := make([]string, len(s.JobCountByHour))
	data := make([]opts.BarData, len(s.JobCountByHour))
	for h, n := range s.JobCountByHour {
		labels[h] = fmt.Sprintf("%02d", h)
		data[h] = opts.BarData{Value: n}
	}
	bar.SetXAxis(labels)
	bar.AddSeries("jobs", data)
	return bar
}

func adapterTasksChart(s *snapshot.Snapshot) *charts.Line {
	days := len(s.JobsPerDay)
	line := newLine("Tasks per adapter", "", days)

	for _, a := range busiest(s.AdapterTasksPerDay, maxAdapterSeries) {
		line.AddSeries(a.Adapter, lineData(a.Data))
	}
	return line
}

// busiest returns up to n series with the largest totals, keeping the
// snapshot order among them.
func busiest(series []snapshot.AdapterSeries, n int) []snapshot.AdapterSeries {
	if len(series) <= n {
		return series
	}

	totals := make([]int64, len(series))
	for i, a := range series {
		for _, v := range a.Data {
			totals[i] += v
		}
	}

	keep := make([]bool, len(series))
	for picked := 0; picked < n; picked++ {
		best := -1
		for i := range series {
			if keep[i] {
				continue
			}
			if best < 0 || totals[i] > totals[best] {
				best = i
			}
		}
		keep[best] = true
	}

	out := make([]snapshot.AdapterSeries, 0, n)
	for i, a := range series {
		if keep[i] {
			out = append(out, a)
		}
	}
	return out
}
