// Package dashboard renders a terminal view of a running crew session.
// It polls the ledger file through a Tailer and shows agent status,
// message traffic, file locks and conflicts in a tabbed bubbletea UI.
package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crewforge/crewforge/pkg/ledger"
)

// DefaultRefresh is the snapshot poll interval.
const DefaultRefresh = 2 * time.Second

type tabID int

const (
	tabOverview tabID = iota
	tabStatistics
	tabConflicts
)

var tabNames = []string{"Overview", "Statistics", "Conflicts"}

// SnapshotFunc supplies the current ledger document. The zero document
// and an error are both rendered rather than crashing the UI.
type SnapshotFunc func() (*ledger.Document, error)

type snapshotMsg struct {
	doc *ledger.Document
	err error
}

type tickMsg time.Time

// Model is the bubbletea model for the dashboard.
type Model struct {
	snapshot SnapshotFunc
	refresh  time.Duration

	doc          *ledger.Document
	stats        Stats
	sessionStart time.Time
	lastUpdate   time.Time
	pollErr      string

	activeTab tabID
	width     int
	height    int

	overview   viewport.Model
	agentTable table.Model
}

// Option customizes the model.
type Option func(*Model)

// WithRefresh overrides the poll interval.
func WithRefresh(interval time.Duration) Option {
	return func(m *Model) {
		if interval > 0 {
			m.refresh = interval
		}
	}
}

// New builds a dashboard model fed by snapshot.
func New(snapshot SnapshotFunc, opts ...Option) *Model {
	m := &Model{
		snapshot:     snapshot,
		refresh:      DefaultRefresh,
		sessionStart: time.Now(),
		overview:     viewport.New(80, 20),
		agentTable:   newAgentTable(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewFromTailer builds a dashboard over a running ledger tailer.
func NewFromTailer(tailer *ledger.Tailer, opts ...Option) *Model {
	return New(func() (*ledger.Document, error) {
		return tailer.Snapshot(), nil
	}, opts...)
}

func newAgentTable() table.Model {
	return table.New(
		table.WithColumns([]table.Column{
			{Title: "Agent", Width: 16},
			{Title: "Messages", Width: 10},
			{Title: "Status", Width: 28},
			{Title: "Last Activity", Width: 14},
		}),
		table.WithHeight(8),
	)
}

// Init starts the poll loop.
func (m *Model) Init() tea.Cmd {
	return m.fetchSnapshot()
}

// Update handles input and refresh messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.overview.Width = maxInt(20, msg.Width-6)
		m.overview.Height = maxInt(5, msg.Height-12)
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.pollErr = msg.err.Error()
		} else {
			m.pollErr = ""
			m.doc = msg.doc
			m.stats = ComputeStats(msg.doc, m.sessionStart)
			m.lastUpdate = time.Now()
			m.overview.SetContent(m.renderOverviewContent())
			m.agentTable.SetRows(agentRows(m.stats))
		}
		return m, m.scheduleRefresh()

	case tickMsg:
		return m, m.fetchSnapshot()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.fetchSnapshot()
		case "tab", "right", "l":
			m.activeTab = (m.activeTab + 1) % tabID(len(tabNames))
			return m, nil
		case "shift+tab", "left", "h":
			m.activeTab = (m.activeTab + tabID(len(tabNames)) - 1) % tabID(len(tabNames))
			return m, nil
		case "1":
			m.activeTab = tabOverview
			return m, nil
		case "2":
			m.activeTab = tabStatistics
			return m, nil
		case "3":
			m.activeTab = tabConflicts
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case tabOverview:
		m.overview, cmd = m.overview.Update(msg)
	case tabStatistics:
		m.agentTable, cmd = m.agentTable.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchSnapshot() tea.Cmd {
	snapshot := m.snapshot
	return func() tea.Msg {
		doc, err := snapshot()
		return snapshotMsg{doc: doc, err: err}
	}
}

func (m *Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run blocks running the dashboard until the user quits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func agentRows(stats Stats) []table.Row {
	rows := make([]table.Row, 0, len(stats.AgentActivity))
	for _, a := range stats.AgentActivity {
		last := ""
		if !a.LastActivity.IsZero() {
			last = humanizeDuration(time.Since(a.LastActivity)) + " ago"
		}
		rows = append(rows, table.Row{
			a.Agent,
			fmt.Sprintf("%d", a.MessagesSent),
			truncate(a.Status, 28),
			last,
		})
	}
	return rows
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
