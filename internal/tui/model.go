package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/caevv/lgstats/internal/server"
	"github.com/caevv/lgstats/internal/snapshot"
)

// ViewMode represents the current view in the TUI.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

const (
	runLimit     = 8
	fetchTimeout = 10 * time.Second
)

// Model holds the state for the TUI.
type Model struct {
	source   Source
	interval time.Duration

	// UI state
	viewMode     ViewMode
	snap         *snapshot.Snapshot
	adapters     []AdapterState
	runs         []server.RunSummary
	tasks        []server.TaskSummary
	selected     int
	width        int
	height       int
	lastUpdate   time.Time
	quitting     bool
	loading      bool
	errorMessage string
	notice       string
}

// AdapterState is one adapter of the snapshot. Day series are indexed by
// days before the snapshot day, 0 being that day.
type AdapterState struct {
	Name        string
	Tasks       []int64
	Errors      []int64
	AvgRuntime  []int64 // seconds
	TotalTasks  int64
	TotalErrors int64
}

// New creates a dashboard reading from src every interval.
func New(src Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return Model{
		source:   src,
		interval: interval,
		loading:  true,
	}
}

// Init loads the first data set.
func (m Model) Init() tea.Cmd {
	return m.fetchCmd(false)
}

// tickMsg starts a scheduled refresh.
type tickMsg time.Time

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// dataMsg carries the result of one refresh. Manual refreshes do not
// schedule the next tick, so only one tick chain is ever active.
type dataMsg struct {
	snap   *snapshot.Snapshot
	runs   []server.RunSummary
	tasks  []server.TaskSummary
	err    error
	at     time.Time
	manual bool
}

type triggerMsg struct {
	runID string
	err   error
}

func (m Model) fetchCmd(manual bool) tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		msg := load(ctx, src)
		msg.manual = manual
		return msg
	}
}

func (m Model) triggerCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		runID, err := src.Trigger(ctx)
		return triggerMsg{runID: runID, err: err}
	}
}

func load(ctx context.Context, src Source) dataMsg {
	msg := dataMsg{at: time.Now()}

	snap, err := src.Snapshot(ctx)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		msg.err = err
		return msg
	}
	msg.snap = snap

	if msg.runs, err = src.Runs(ctx, runLimit); err != nil {
		msg.err = err
		return msg
	}
	if msg.tasks, err = src.Tasks(ctx); err != nil {
		msg.err = err
	}
	return msg
}

// apply stores a refresh result. On error the previous data stays visible.
func (m *Model) apply(msg dataMsg) {
	m.loading = false
	m.lastUpdate = msg.at
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		return
	}

	m.errorMessage = ""
	m.snap = msg.snap
	m.adapters = adapterStates(msg.snap)
	m.runs = msg.runs
	m.tasks = msg.tasks

	if m.selected >= len(m.adapters) {
		m.selected = max(len(m.adapters)-1, 0)
	}
	if len(m.adapters) == 0 {
		m.viewMode = ViewModeList
	}
}

// adapterStates joins the per-adapter series of s by adapter, in the order
// of the tasks series.
func adapterStates(s *snapshot.Snapshot) []AdapterState {
	if s == nil {
		return nil
	}

	errorsByAdapter := make(map[string][]int64, len(s.AdapterErrorsPerDay))
	for _, series := range s.AdapterErrorsPerDay {
		errorsByAdapter[series.Adapter] = series.Data
	}
	runtimeByAdapter := make(map[string][]int64, len(s.AdapterAvgRuntimeDay))
	for _, series := range s.AdapterAvgRuntimeDay {
		runtimeByAdapter[series.Adapter] = series.Data
	}

	states := make([]AdapterState, 0, len(s.AdapterTasksPerDay))
	for _, series := range s.AdapterTasksPerDay {
		st := AdapterState{
			Name:       series.Adapter,
			Tasks:      series.Data,
			Errors:     errorsByAdapter[series.Adapter],
			AvgRuntime: runtimeByAdapter[series.Adapter],
		}
		for _, v := range st.Tasks {
			st.TotalTasks += v
		}
		for _, v := range st.Errors {
			st.TotalErrors += v
		}
		states = append(states, st)
	}
	return states
}

// Quitting returns true if the user has requested to quit.
func (m Model) Quitting() bool {
	return m.quitting
}
