package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Mode is how a command talks to the user.
type Mode string

const (
	// ModeTUI renders styled output for a person at a terminal
	ModeTUI Mode = "tui"
	// ModeJSON writes one JSON document or event per line
	ModeJSON Mode = "json"
)

// BaseModel carries what every full-screen model needs: the command
// context, the terminal width and the quit keys.
type BaseModel struct {
	ctx      context.Context
	width    int
	quitting bool
}

func NewBaseModel(ctx context.Context) BaseModel {
	return BaseModel{ctx: ctx}
}

func (m BaseModel) Context() context.Context {
	return m.ctx
}

// Width is the terminal width, or 0 before the first resize.
func (m BaseModel) Width() int {
	return m.width
}

func (m BaseModel) IsQuitting() bool {
	return m.quitting
}

// Update tracks resizes and returns tea.Quit on ctrl+c or q.
func (m *BaseModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.quitting = true
			return tea.Quit
		}
	}
	return nil
}
