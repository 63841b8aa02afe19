package dashboard

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#5B8DEF")
	colorMuted  = lipgloss.Color("#888888")
	colorBorder = lipgloss.Color("#444444")
	colorWarn   = lipgloss.Color("#FFC107")
	colorDanger = lipgloss.Color("#e53935")
	colorOK     = lipgloss.Color("#8BC34A")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginBottom(1)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(colorMuted)

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(colorAccent).
			Underline(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	warnStyle = lipgloss.NewStyle().Foreground(colorWarn)

	dangerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorDanger)

	okStyle = lipgloss.NewStyle().Foreground(colorOK)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)
)
