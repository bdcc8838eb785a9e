package models

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestBaseModel_Update(t *testing.T) {
	t.Run("Should track the terminal width", func(t *testing.T) {
		m := NewBaseModel(t.Context())
		assert.Nil(t, m.Update(tea.WindowSizeMsg{Width: 120, Height: 40}))
		assert.Equal(t, 120, m.Width())
	})

	t.Run("Should quit on ctrl+c and q only", func(t *testing.T) {
		m := NewBaseModel(t.Context())
		assert.Nil(t, m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")}))
		assert.False(t, m.IsQuitting())

		cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		assert.NotNil(t, cmd)
		assert.True(t, m.IsQuitting())
	})
}
