package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/caevv/lgstats/internal/server"
)

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.loading = true
		return m, m.fetchCmd(false)

	case dataMsg:
		m.apply(msg)
		if msg.manual {
			return m, nil
		}
		return m, tickCmd(m.interval)

	case triggerMsg:
		switch {
		case errors.Is(msg.err, server.ErrBusy):
			m.notice = "a run is already in progress"
		case msg.err != nil:
			m.errorMessage = msg.err.Error()
			m.notice = ""
			return m, nil
		default:
			m.notice = "started run " + msg.runID
		}
		return m, m.fetchCmd(true)

	case error:
		m.errorMessage = msg.Error()
		return m, nil
	}

	return m, nil
}

// handleKeyPress processes keyboard input.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.viewMode = ViewModeList
		return m, nil

	case "enter":
		if m.viewMode == ViewModeList && len(m.adapters) > 0 {
			m.viewMode = ViewModeDetail
		}
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.adapters)-1 {
			m.selected++
		}
		return m, nil

	case "g":
		m.selected = 0
		return m, nil

	case "G":
		if len(m.adapters) > 0 {
			m.selected = len(m.adapters) - 1
		}
		return m, nil

	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.fetchCmd(true)

	case "t":
		m.notice = ""
		return m, m.triggerCmd()
	}

	return m, nil
}
