package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/crewforge/crewforge/pkg/ledger"
)

// View renders the active tab inside the chrome shared by all tabs.
func (m *Model) View() string {
	var body string
	switch m.activeTab {
	case tabStatistics:
		body = m.renderStatistics()
	case tabConflicts:
		body = m.renderConflicts()
	default:
		body = m.overview.View()
	}

	sections := []string{
		headerStyle.Render("CREWFORGE · collaboration dashboard"),
		m.renderTabBar(),
		panelStyle.Width(maxInt(40, m.width-2)).Render(body),
		m.renderStatusBar(),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) renderTabBar() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if tabID(i) == m.activeTab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderStatusBar() string {
	if m.pollErr != "" {
		return footerStyle.Render(dangerStyle.Render("ledger unavailable: " + m.pollErr))
	}
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	line := fmt.Sprintf(
		"agents %d · messages %d · locks %d · session %s · updated %s · q quit / tab switch / r refresh",
		m.stats.ActiveAgents,
		m.stats.TotalMessages,
		m.stats.LocksHeld,
		formatDuration(m.stats.SessionDuration),
		updated,
	)
	return footerStyle.Render(line)
}

// renderOverviewContent fills the overview viewport: agent status,
// recent messages, file locks and integration points.
func (m *Model) renderOverviewContent() string {
	if m.doc == nil {
		return mutedStyle.Render("Waiting for the ledger file...")
	}
	var sections []string

	sections = append(sections, panelTitleStyle.Render("Agent Status"))
	if len(m.stats.AgentActivity) == 0 {
		sections = append(sections, mutedStyle.Render("  no agents reporting yet"))
	}
	for _, a := range m.stats.AgentActivity {
		status := a.Status
		if status == "" {
			status = "(no status)"
		}
		line := fmt.Sprintf("  %-14s %s", a.Agent, status)
		if !a.LastActivity.IsZero() {
			line += mutedStyle.Render(fmt.Sprintf("  · %s ago", humanizeDuration(time.Since(a.LastActivity))))
		}
		sections = append(sections, line)
	}

	sections = append(sections, "", panelTitleStyle.Render("Recent Messages"))
	messages := m.doc.Messages
	if len(messages) == 0 {
		sections = append(sections, mutedStyle.Render("  no messages yet"))
	}
	start := 0
	if len(messages) > 15 {
		start = len(messages) - 15
	}
	for _, msg := range messages[start:] {
		stamp := msg.Timestamp.Format("15:04:05")
		line := fmt.Sprintf("  %s %s → %s: %s", stamp, msg.From, msg.To, truncate(msg.Body, 70))
		if msg.Type == ledger.MessageWarning {
			line = warnStyle.Render(line)
		}
		sections = append(sections, line)
	}

	sections = append(sections, "", panelTitleStyle.Render("File Locks"))
	if len(m.doc.FileLocks) == 0 {
		sections = append(sections, okStyle.Render("  no files locked"))
	}
	paths := make([]string, 0, len(m.doc.FileLocks))
	for path := range m.doc.FileLocks {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		lock := m.doc.FileLocks[path]
		sections = append(sections, fmt.Sprintf("  %s → %s (%s)",
			path, lock.Owner, humanizeDuration(time.Since(lock.AcquiredAt))))
	}
	if pending := m.doc.PendingRequests(); len(pending) > 0 {
		sections = append(sections, warnStyle.Render(fmt.Sprintf("  %d request(s) awaiting approval", len(pending))))
	}

	sections = append(sections, "", panelTitleStyle.Render("Integration Points"))
	points := m.doc.IntegrationPoints
	if len(points) == 0 {
		sections = append(sections, mutedStyle.Render("  none registered"))
	}
	start = 0
	if len(points) > 10 {
		start = len(points) - 10
	}
	for _, point := range points[start:] {
		sections = append(sections, fmt.Sprintf("  %s: %s", point.Agent, point.Component))
	}

	return strings.Join(sections, "\n")
}

func (m *Model) renderStatistics() string {
	var sections []string

	sections = append(sections, panelTitleStyle.Render("Session"))
	sections = append(sections,
		fmt.Sprintf("  duration            %s", formatDuration(m.stats.SessionDuration)),
		fmt.Sprintf("  messages            %d (%.1f/min)", m.stats.TotalMessages, m.stats.MessagesPerMin),
		fmt.Sprintf("  active agents       %d", m.stats.ActiveAgents),
		fmt.Sprintf("  integration points  %d", m.stats.Integrations),
	)

	sections = append(sections, "", panelTitleStyle.Render("Messages by Type"))
	if len(m.stats.MessagesByType) == 0 {
		sections = append(sections, mutedStyle.Render("  none"))
	}
	kinds := make([]string, 0, len(m.stats.MessagesByType))
	for kind := range m.stats.MessagesByType {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		sections = append(sections, fmt.Sprintf("  %-10s %d", kind, m.stats.MessagesByType[kind]))
	}

	sections = append(sections, "", panelTitleStyle.Render("File Locks"))
	sections = append(sections,
		fmt.Sprintf("  held      %d", m.stats.LocksHeld),
		fmt.Sprintf("  requested %d", m.stats.LocksRequested),
		fmt.Sprintf("  approved  %d", m.stats.LocksApproved),
		fmt.Sprintf("  denied    %d", m.stats.LocksDenied),
		fmt.Sprintf("  expired   %d", m.stats.LocksExpired),
	)

	sections = append(sections, "", panelTitleStyle.Render("Conflicts"))
	sections = append(sections,
		fmt.Sprintf("  open      %d", m.stats.ConflictsOpen),
		fmt.Sprintf("  resolved  %d", m.stats.ConflictsClosed),
	)

	sections = append(sections, "", panelTitleStyle.Render("Agent Activity"))
	sections = append(sections, m.agentTable.View())

	return strings.Join(sections, "\n")
}

func (m *Model) renderConflicts() string {
	if m.doc == nil || len(m.doc.Conflicts) == 0 {
		return okStyle.Render("No conflicts reported.")
	}
	var sections []string
	for _, conflict := range m.doc.Conflicts {
		head := fmt.Sprintf("%s · reported by %s at %s",
			conflict.ID, conflict.Reporter, conflict.ReportedAt.Format("15:04:05"))
		if conflict.Status == ledger.ConflictOpen {
			head = dangerStyle.Render("OPEN      ") + head
		} else {
			head = okStyle.Render("RESOLVED  ") + head
		}
		sections = append(sections, head, "  "+conflict.Description)
		if conflict.Resolution != "" {
			sections = append(sections, mutedStyle.Render("  resolution: "+conflict.Resolution))
		}
		sections = append(sections, "")
	}
	return strings.Join(sections, "\n")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
