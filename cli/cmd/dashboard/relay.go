package dashboard

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/uisync"
)

type alertMsg struct{ alert uisync.Alert }

type statusbarMsg struct {
	job  core.JobName
	tmpl string
}

type titlesMsg struct {
	containerID string
	tmpl        string
}

type spinnerMsg struct{ busy bool }

type buttonMsg struct{ button uisync.Button }

// relay is the uisync.View of the dashboard. Updates arrive on poll
// goroutines and are forwarded to the program's event loop.
type relay struct {
	mu sync.RWMutex
	p  *tea.Program
}

var _ uisync.View = (*relay)(nil)

func (r *relay) bind(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *relay) send(msg tea.Msg) {
	r.mu.RLock()
	p := r.p
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *relay) ShowAlert(a uisync.Alert) {
	r.send(alertMsg{alert: a})
}

func (r *relay) FillStatusbar(job core.JobName, tmpl string) {
	r.send(statusbarMsg{job: job, tmpl: tmpl})
}

func (r *relay) SetTitles(containerID, tmpl string) {
	r.send(titlesMsg{containerID: containerID, tmpl: tmpl})
}

func (r *relay) SetSpinner(busy bool) {
	r.send(spinnerMsg{busy: busy})
}

func (r *relay) SetActionButton(b uisync.Button) {
	r.send(buttonMsg{button: b})
}
