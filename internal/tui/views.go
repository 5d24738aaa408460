package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/caevv/lgstats/internal/server"
)

const barWidth = 30

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.viewMode == ViewModeDetail && m.selected < len(m.adapters) {
		return m.renderDetailView()
	}

	sections := []string{
		m.renderHeader(""),
		m.renderStats(),
		m.renderAdapterList(),
		m.renderRuns(),
		m.renderHelpBar("q: quit  │  ↑/↓: navigate  │  enter: details  │  r: refresh  │  t: run now"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader(suffix string) string {
	title := "lgstats dashboard"
	if suffix != "" {
		title += " - " + suffix
	}

	updated := "loading..."
	if !m.lastUpdate.IsZero() {
		updated = "Last updated: " + m.lastUpdate.Format("15:04:05")
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(title),
		"  ",
		subtitleStyle.Render(m.source.String()),
		subtitleStyle.Render(updated),
	)
	return headerStyle.Render(header)
}

func (m Model) renderStats() string {
	if m.snap == nil {
		return statsStyle.Render(subtitleStyle.Render("No snapshot yet"))
	}

	s := m.snap
	stats := []string{
		fmt.Sprintf("%s %s", keyStyle.Render("Jobs:"), humanize.Comma(s.TotalJobCount)),
		fmt.Sprintf("%s %s", keyStyle.Render("Tasks:"), humanize.Comma(s.TotalTaskCount)),
		fmt.Sprintf("%s %s", keyStyle.Render("Errors:"), humanize.Comma(s.TotalErrorCount)),
		fmt.Sprintf("%s %s", keyStyle.Render("Avg job:"), formatDuration(time.Duration(s.AvgJobTime)*time.Second)),
		fmt.Sprintf("%s %d", keyStyle.Render("Adapters:"), len(m.adapters)),
	}
	if skipped := s.Diagnostics.Skipped(); skipped > 0 {
		stats = append(stats, warningStyle.Render(fmt.Sprintf("Skipped: %d", skipped)))
	}

	content := strings.Join(stats, "  │  ") + "\n" +
		keyStyle.Render("Snapshot: ") + s.LastRunTime

	return statsStyle.Render(content)
}

func (m Model) renderAdapterList() string {
	if len(m.adapters) == 0 {
		return panelStyle.Render(subtitleStyle.Render("No adapters"))
	}

	rows := []string{
		titleStyle.Render("Adapters"),
		"",
		keyStyle.Render(fmt.Sprintf("   %-24s  %8s  %8s  %6s  %s", "Adapter", "Tasks", "Errors", "Rate", "Tasks per day")),
		keyStyle.Render(strings.Repeat("─", 80)),
	}

	for i, a := range m.adapters {
		cursor := " "
		if i == m.selected {
			cursor = iconArrow
		}

		rate := padLeft(errorRate(a.TotalErrors, a.TotalTasks), 6)
		if a.TotalErrors > 0 {
			rate = statusErrorStyle.Render(rate)
		}

		row := fmt.Sprintf("%s  %-24s  %8s  %8s  %s  %s",
			cursor,
			truncate(a.Name, 24),
			humanize.Comma(a.TotalTasks),
			humanize.Comma(a.TotalErrors),
			rate,
			barStyle.Render(sparkline(a.Tasks)),
		)

		if i == m.selected {
			rows = append(rows, itemSelectedStyle.Render(row))
		} else {
			rows = append(rows, itemStyle.Render(row))
		}
	}

	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderRuns() string {
	rows := []string{titleStyle.Render(fmt.Sprintf("Recent Runs (%d)", len(m.runs))), ""}

	for _, task := range m.tasks {
		if task.NextRun == nil {
			continue
		}
		rows = append(rows, fmt.Sprintf("%s %s %s",
			keyStyle.Render("Next "+task.ID+":"),
			valueStyle.Render(formatTimeFromNow(*task.NextRun)),
			keyStyle.Render("("+task.Schedule+")")))
	}
	if len(m.tasks) > 0 {
		rows = append(rows, "")
	}

	if len(m.runs) == 0 {
		rows = append(rows, subtitleStyle.Render("No runs yet"))
		return panelStyle.Render(strings.Join(rows, "\n"))
	}

	rows = append(rows,
		keyStyle.Render(fmt.Sprintf("   %-10s  %-9s  %-6s  %-10s  %s", "Time", "Trigger", "Status", "Duration", "Jobs")),
		keyStyle.Render("   "+strings.Repeat("─", 60)))
	for _, run := range m.runs {
		rows = append(rows, renderRunItem(run))
	}

	return panelStyle.Render(strings.Join(rows, "\n"))
}

func renderRunItem(run server.RunSummary) string {
	status := statusSuccessStyle.Render(iconSuccess)
	switch run.Status {
	case "running":
		status = statusRunningStyle.Render(iconRunning)
	case "failure":
		status = statusErrorStyle.Render(iconError)
	}

	duration := "running..."
	if run.Status != "running" {
		duration = formatDuration(time.Duration(run.Duration * float64(time.Millisecond)))
	}

	row := fmt.Sprintf("%s  %-10s  %-9s  %s       %s  %s",
		iconBullet,
		run.StartTime.Local().Format("15:04:05"),
		truncate(run.Trigger, 9),
		status,
		durationStyle.Render(padRight(duration, 10)),
		humanize.Comma(run.TotalJobCount),
	)
	if run.Error != "" {
		row += "\n    " + keyStyle.Render("Error: ") + statusErrorStyle.Render(truncate(run.Error, 70))
	}
	return itemStyle.Render(row)
}

func (m Model) renderHelpBar(help string) string {
	if m.errorMessage != "" {
		return statusBarStyle.Render(statusErrorStyle.Render("Error: " + m.errorMessage))
	}
	if m.notice != "" {
		help = m.notice + "  │  " + help
	}
	return statusBarStyle.Render(help)
}

// renderDetailView renders the day by day series of the selected adapter.
func (m Model) renderDetailView() string {
	a := m.adapters[m.selected]
	sections := []string{m.renderHeader(a.Name)}

	info := []string{
		titleStyle.Render("Window totals"),
		"",
		fmt.Sprintf("%s %s", keyStyle.Render("Tasks:"), valueStyle.Render(humanize.Comma(a.TotalTasks))),
		fmt.Sprintf("%s %s (%s)", keyStyle.Render("Errors:"), valueStyle.Render(humanize.Comma(a.TotalErrors)), errorRate(a.TotalErrors, a.TotalTasks)),
	}
	sections = append(sections, panelStyle.Render(strings.Join(info, "\n")))

	peak := int64(0)
	for _, v := range a.Tasks {
		peak = max(peak, v)
	}

	days := []string{
		titleStyle.Render(fmt.Sprintf("Per day (%d days)", len(a.Tasks))),
		"",
		keyStyle.Render(fmt.Sprintf("  %-8s  %8s  %8s  %10s  %s", "Day", "Tasks", "Errors", "Avg run", "")),
		keyStyle.Render("  " + strings.Repeat("─", 70)),
	}
	for i, tasks := range a.Tasks {
		errs := at(a.Errors, i)
		errCell := padLeft(humanize.Comma(errs), 8)
		if errs > 0 {
			errCell = statusErrorStyle.Render(errCell)
		}
		days = append(days, fmt.Sprintf("  %-8s  %8s  %s  %10s  %s",
			dayLabel(i),
			humanize.Comma(tasks),
			errCell,
			formatDuration(time.Duration(at(a.AvgRuntime, i))*time.Second),
			barStyle.Render(bar(tasks, peak, barWidth)),
		))
	}
	sections = append(sections, panelStyle.Render(strings.Join(days, "\n")))

	sections = append(sections, m.renderHelpBar("esc: back  │  ↑/↓: adapter  │  q: quit  │  r: refresh"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// sparkline draws a day series oldest first.
func sparkline(series []int64) string {
	if len(series) == 0 {
		return ""
	}

	peak := int64(0)
	for _, v := range series {
		peak = max(peak, v)
	}

	var b strings.Builder
	for i := len(series) - 1; i >= 0; i-- {
		level := 0
		if peak > 0 {
			level = int(series[i] * int64(len(sparkLevels)-1) / peak)
		}
		b.WriteRune(sparkLevels[level])
	}
	return b.String()
}

func bar(v, peak int64, width int) string {
	if peak <= 0 || v <= 0 {
		return ""
	}
	n := max(int(v*int64(width)/peak), 1)
	return strings.Repeat("█", n)
}

func at(series []int64, i int) int64 {
	if i < len(series) {
		return series[i]
	}
	return 0
}

func dayLabel(i int) string {
	if i == 0 {
		return "today"
	}
	return fmt.Sprintf("-%dd", i)
}

func errorRate(errs, tasks int64) string {
	if tasks == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(errs)/float64(tasks))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTimeFromNow formats a time relative to now.
func formatTimeFromNow(t time.Time) string {
	d := time.Until(t)

	switch {
	case d < 0:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("in %ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}

func padLeft(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(" ", length-len(s)) + s
}
