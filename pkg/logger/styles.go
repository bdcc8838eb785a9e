package logger

import (
	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

func styles() *charmlog.Styles {
	s := charmlog.DefaultStyles()
	level := func(name, color string) lipgloss.Style {
		return lipgloss.NewStyle().SetString(name).Bold(true).Foreground(lipgloss.Color(color))
	}
	s.Levels[charmlog.DebugLevel] = level("DEBUG", "63")
	s.Levels[charmlog.InfoLevel] = level("INFO", "86")
	s.Levels[charmlog.WarnLevel] = level("WARN", "192")
	s.Levels[charmlog.ErrorLevel] = level("ERROR", "204")
	s.Keys["job"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	s.Keys["module"] = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	s.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	return s
}
