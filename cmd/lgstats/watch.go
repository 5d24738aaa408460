package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/caevv/lgstats/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live terminal dashboard",
	Long: `Show an interactive terminal dashboard of the latest snapshot, its
per-adapter day series and the run history.

The data comes from the HTTP API of a running "lgstats serve", or from a
snapshot file with --file. Runs can be started with "t" when watching a
server.

Navigation:
  ↑/↓ or k/j  - Select adapter
  enter       - Show the adapter's day series
  esc         - Go back to the adapter list
  g/G         - Jump to top/bottom
  r           - Refresh now
  t           - Start a run now
  q           - Quit

Examples:
  lgstats watch --url http://localhost:8080
  lgstats watch --file /var/www/data/metrics.json`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("url", "u", "http://localhost:8080", "Base URL of a running lgstats server")
	watchCmd.Flags().StringP("file", "f", "", "Read a snapshot file instead of a server")
	watchCmd.Flags().Duration("interval", 5*time.Second, "Refresh interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	file, _ := cmd.Flags().GetString("file")
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval < time.Second {
		return fmt.Errorf("--interval must be at least 1s, got %s", interval)
	}

	var src tui.Source = tui.NewHTTPSource(url, interval)
	if file != "" {
		src = tui.NewFileSource(file)
	}

	p := tea.NewProgram(
		tui.New(src, interval),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
