// Package status is the live `slotwatch status --watch` view. It re-reads
// the supervisor's state snapshot on a fixed interval.
package status

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xucongyong/slotwatch/internal/daemon"
	"github.com/xucongyong/slotwatch/internal/lock"
)

// Row is one line in the worker list: a live process or a cooldown.
type Row struct {
	ID      string
	Live    bool
	PID     int
	Since   time.Time
	Until   time.Time
	Outcome daemon.Outcome
}

// Model is the bubbletea model for the status TUI.
type Model struct {
	stateDir string
	interval time.Duration
	now      func() time.Time

	state      *daemon.State
	lockStatus string
	rows       []Row
	cursor     int
	err        error
	loadedAt   time.Time

	keys     KeyMap
	help     help.Model
	showHelp bool
	width    int
	height   int
}

// New creates a status model that reloads stateDir every interval.
func New(stateDir string, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{
		stateDir: stateDir,
		interval: interval,
		now:      time.Now,
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
}

// Init loads the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.fetchState
}

// fetchStateMsg is the result of reading the snapshot.
type fetchStateMsg struct {
	state      *daemon.State
	lockStatus string
	err        error
}

// tickMsg triggers a reload.
type tickMsg time.Time

func (m Model) fetchState() tea.Msg {
	state, err := daemon.LoadState(m.stateDir)
	return fetchStateMsg{state: state, lockStatus: lock.New(m.stateDir).Status(), err: err}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// buildRows lists live workers first, then cooldowns soonest-first.
func buildRows(state *daemon.State) []Row {
	if state == nil {
		return nil
	}
	rows := make([]Row, 0, len(state.Workers)+len(state.Cooldowns))
	live := make(map[string]bool, len(state.Workers))
	for _, w := range state.Workers {
		live[w.ID] = true
		rows = append(rows, Row{ID: w.ID, Live: true, PID: w.PID, Since: w.StartedAt})
	}
	for _, c := range state.Cooldowns {
		if live[c.ID] {
			continue
		}
		rows = append(rows, Row{ID: c.ID, Until: c.Until, Outcome: c.Outcome})
	}
	return rows
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case fetchStateMsg:
		m.err = msg.err
		if msg.err == nil {
			m.state = msg.state
			m.rows = buildRows(msg.state)
		}
		m.lockStatus = msg.lockStatus
		m.loadedAt = m.now()
		if m.cursor > m.maxCursor() {
			m.cursor = m.maxCursor()
		}
		return m, m.tick()

	case tickMsg:
		return m, m.fetchState

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case key.Matches(msg, m.keys.Down):
			if m.cursor < m.maxCursor() {
				m.cursor++
			}
			return m, nil

		case key.Matches(msg, m.keys.Top):
			m.cursor = 0
			return m, nil

		case key.Matches(msg, m.keys.Bottom):
			m.cursor = m.maxCursor()
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchState
		}
	}

	return m, nil
}

func (m Model) maxCursor() int {
	if len(m.rows) == 0 {
		return 0
	}
	return len(m.rows) - 1
}

// View renders the model.
func (m Model) View() string {
	return m.renderView()
}
