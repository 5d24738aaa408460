package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/config"
	"github.com/caevv/lgstats/internal/snapshot"
)

var showCmd = &cobra.Command{
	Use:   "show [snapshot-file]",
	Short: "Print a snapshot as tables",
	Long: `Print the totals, the user leaderboard, per-adapter totals over the
window and the data quality diagnostics of a snapshot document.

Without an argument the default output path is read.

Example:
  lgstats show /var/www/data/metrics.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: showSnapshot,
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	path := config.DefaultOutputPath
	if len(args) == 1 {
		path = args[0]
	}

	s, err := snapshot.ReadFile(path)
	if err != nil {
		return err
	}

	renderShow(os.Stdout, s)
	return nil
}

func renderShow(w io.Writer, s *snapshot.Snapshot) {
	summary := newTable(w)
	summary.SetTitle("Snapshot " + s.LastRunTime)
	summary.AppendRows([]table.Row{
		{"Window", fmt.Sprintf("%d days", len(s.JobsPerDay))},
		{"Jobs", humanize.Comma(s.TotalJobCount)},
		{"Tasks", humanize.Comma(s.TotalTaskCount)},
		{"Errors", humanize.Comma(s.TotalErrorCount)},
		{"Avg job time", (time.Duration(s.AvgJobTime) * time.Second).String()},
		{"Avg seed size today", humanize.Bytes(uint64(max(first(s.JobAvgSeedSizePerDay), 0)))},
		{"Adapters", len(s.Adapters)},
	})
	summary.Render()
	fmt.Fprintln(w)

	users := newTable(w)
	users.SetTitle("Top users by jobs submitted")
	users.AppendHeader(table.Row{"#", "User", "Jobs"})
	for i, u := range s.TopUsers {
		users.AppendRow(table.Row{i + 1, u.User, humanize.Comma(u.Count)})
	}
	users.Render()
	fmt.Fprintln(w)

	adapters := newTable(w)
	adapters.SetTitle("Adapters")
	adapters.AppendHeader(table.Row{"Adapter", "Tasks", "Errors", "Error rate", "Busiest day"})
	errorsByAdapter := make(map[string]int64, len(s.AdapterErrorsPerDay))
	for _, series := range s.AdapterErrorsPerDay {
		errorsByAdapter[series.Adapter] = sum(series.Data)
	}
	var totalTasks, totalErrors int64
	for _, series := range s.AdapterTasksPerDay {
		tasks := sum(series.Data)
		errs := errorsByAdapter[series.Adapter]
		totalTasks += tasks
		totalErrors += errs
		adapters.AppendRow(table.Row{series.Adapter, humanize.Comma(tasks), humanize.Comma(errs), rate(errs, tasks), busiestDay(series.Data)})
	}
	adapters.AppendFooter(table.Row{"Total", humanize.Comma(totalTasks), humanize.Comma(totalErrors), rate(totalErrors, totalTasks), ""})
	adapters.Render()
	fmt.Fprintln(w)

	d := s.Diagnostics
	diag := newTable(w)
	diag.SetTitle("Diagnostics")
	diag.AppendRows([]table.Row{
		{"Skipped jobs", d.SkippedJobs},
		{"Skipped tasks", d.SkippedTasks},
		{"Clamped events", d.ClampedEvents},
		{"Clock skew jobs", d.ClockSkewJobs},
		{"Clock skew tasks", d.ClockSkewTasks},
		{"Ambiguous owner jobs", d.AmbiguousOwnerJobs},
	})
	diag.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func sum(series []int64) int64 {
	var total int64
	for _, v := range series {
		total += v
	}
	return total
}

func first(series []int64) int64 {
	if len(series) == 0 {
		return 0
	}
	return series[0]
}

func rate(part, whole int64) string {
	if whole == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(whole))
}

// busiestDay labels the day index with the most tasks; 0 is today.
func busiestDay(series []int64) string {
	best := -1
	for i, v := range series {
		if v > 0 && (best < 0 || v > series[best]) {
			best = i
		}
	}
	switch best {
	case -1:
		return "-"
	case 0:
		return "today"
	default:
		return fmt.Sprintf("%dd ago", best)
	}
}
