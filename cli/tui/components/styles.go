package components

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.Color("69")
	ColorSuccess = lipgloss.Color("42")
	ColorDanger  = lipgloss.Color("#FF6B6B")
	ColorWarning = lipgloss.Color("214")
	ColorMuted   = lipgloss.Color("#888888")

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	MutedStyle = lipgloss.NewStyle().Foreground(ColorMuted)

	PillStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActivePillStyle = PillStyle.Bold(true).Foreground(lipgloss.Color("230")).Background(ColorPrimary)
	LockedPillStyle = PillStyle.Foreground(ColorMuted).Strikethrough(true)

	ButtonStyle     = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder()).BorderForeground(ColorPrimary)
	StopButtonStyle = ButtonStyle.BorderForeground(ColorDanger).Foreground(ColorDanger)

	PanelStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(ColorMuted).Padding(0, 1)
)

// LevelStyle colors an alert by its level, the same way the page maps
// levels onto alert classes.
func LevelStyle(level string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch level {
	case "done":
		return base.Foreground(ColorSuccess)
	case "info":
		return base.Foreground(ColorPrimary)
	case "fail":
		return base.Foreground(ColorDanger)
	case "warning":
		return base.Foreground(ColorWarning)
	default:
		return base
	}
}
