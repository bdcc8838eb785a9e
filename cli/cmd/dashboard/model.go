package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/watchdeck/watchdeck/cli/cmd/setup"
	"github.com/watchdeck/watchdeck/cli/tui/components"
	"github.com/watchdeck/watchdeck/cli/tui/models"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/tabctx"
	"github.com/watchdeck/watchdeck/engine/uisync"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// Clicker is the action button of one job.
type Clicker interface {
	Click(ctx context.Context) error
}

// SetupFunc authorizes a settings module.
type SetupFunc func(ctx context.Context, module core.ModuleName) (setup.Result, error)

type clickDoneMsg struct {
	job core.JobName
	err error
}

type setupDoneMsg struct {
	module core.ModuleName
	result setup.Result
	err    error
}

// jobPanel is the pill of one job: its button, status panel and titles.
type jobPanel struct {
	desc    core.Descriptor
	button  uisync.Button
	status  []string
	titles  components.TitleList
	listIdx int
}

// Model is the dashboard page: one pill per job, a shared alert line and
// a shared spinner.
type Model struct {
	models.BaseModel
	state    *tabctx.State
	panels   []*jobPanel
	active   int
	clickers map[core.JobName]Clicker
	setup    SetupFunc
	alert    components.AlertLine
	spinner  spinner.Model
	busy     bool
}

// NewModel builds the dashboard over descs. The first descriptor is the
// active pill.
func NewModel(
	ctx context.Context,
	state *tabctx.State,
	descs []core.Descriptor,
	clickers map[core.JobName]Clicker,
	setupFn SetupFunc,
) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(components.ColorPrimary)
	m := &Model{
		BaseModel: models.NewBaseModel(ctx),
		state:     state,
		clickers:  clickers,
		setup:     setupFn,
		spinner:   s,
	}
	for _, d := range descs {
		m.panels = append(m.panels, &jobPanel{desc: d, button: uisync.ButtonDo(d.Name)})
	}
	if len(m.panels) > 0 {
		state.SetActivePill(m.panels[0].desc.PillID)
		for _, p := range m.panels {
			m.selectList(p, 0)
		}
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd := m.BaseModel.Update(msg); cmd != nil {
		return m, cmd
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case alertMsg:
		m.alert = alertLine(msg.alert)
	case statusbarMsg:
		if p := m.panelByJob(msg.job); p != nil {
			p.status = components.FlattenStatusbar(msg.tmpl)
		}
	case titlesMsg:
		if p := m.panelByContainer(msg.containerID); p != nil {
			p.titles = components.FlattenTitles(msg.tmpl)
			m.selectList(p, p.listIdx)
		}
	case spinnerMsg:
		m.busy = msg.busy
	case buttonMsg:
		if p := m.panelByJob(msg.button.Job); p != nil {
			p.button = msg.button
		}
	case clickDoneMsg:
		m.handleClickDone(msg)
	case setupDoneMsg:
		m.alert = components.AlertLine{Level: msg.result.Level, Text: msg.result.Text}
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if len(m.panels) == 0 {
		return nil
	}
	p := m.panels[m.active]
	switch msg.String() {
	case "tab":
		if m.locked() {
			return nil
		}
		m.active = (m.active + 1) % len(m.panels)
		m.state.SetActivePill(m.panels[m.active].desc.PillID)
	case "enter", " ":
		return m.click(p.desc.Name)
	case "right":
		m.selectList(p, p.listIdx+1)
	case "left":
		m.selectList(p, p.listIdx-1)
	case "p":
		m.state.TogglePanel(p.desc.ProgressPanelID)
	case "s":
		if m.locked() || m.setup == nil {
			return nil
		}
		return m.runSetup(p.desc.Module)
	}
	return nil
}

func (m *Model) click(name core.JobName) tea.Cmd {
	clicker, ok := m.clickers[name]
	if !ok {
		return nil
	}
	ctx := m.Context()
	return func() tea.Msg {
		return clickDoneMsg{job: name, err: clicker.Click(ctx)}
	}
}

func (m *Model) runSetup(module core.ModuleName) tea.Cmd {
	ctx := m.Context()
	fn := m.setup
	return func() tea.Msg {
		res, err := fn(ctx, module)
		return setupDoneMsg{module: module, result: res, err: err}
	}
}

// handleClickDone surfaces click errors that no run handler has rendered.
func (m *Model) handleClickDone(msg clickDoneMsg) {
	if msg.err == nil {
		return
	}
	logger.FromContext(m.Context()).Debug("click failed", "job", msg.job, "error", msg.err)
	if errors.Is(msg.err, uisync.ErrUnauthorized) ||
		errors.Is(msg.err, job.ErrStartFailed) ||
		errors.Is(msg.err, job.ErrStopFailed) ||
		errors.Is(msg.err, job.ErrSuperseded) {
		return
	}
	m.alert = components.AlertLine{Level: string(uisync.LevelWarning), Text: msg.err.Error()}
}

// locked reports whether a job shows its Stop affordance, which locks the
// other pill and the settings trigger.
func (m *Model) locked() bool {
	for _, p := range m.panels {
		if p.button.Stop {
			return true
		}
	}
	return false
}

// selectList moves the sub-tab selection of p, wrapping around, and
// publishes it with its counter badge the way the dropdown shows it.
func (m *Model) selectList(p *jobPanel, idx int) {
	lists := core.WatchLists()
	idx = ((idx % len(lists)) + len(lists)) % len(lists)
	p.listIdx = idx
	list := string(lists[idx])
	m.state.SelectDropdownItem(p.desc.MenuID, fmt.Sprintf("%s %d", list, p.titles.Count(list)))
}

func (m *Model) panelByJob(name core.JobName) *jobPanel {
	for _, p := range m.panels {
		if p.desc.Name == name {
			return p
		}
	}
	return nil
}

func (m *Model) panelByContainer(id string) *jobPanel {
	for _, p := range m.panels {
		if p.desc.TitleContainerID == id {
			return p
		}
	}
	return nil
}

func alertLine(a uisync.Alert) components.AlertLine {
	if a.IsFragment() {
		return components.FlattenAlert(a.Fragment)
	}
	return components.AlertLine{Level: string(a.Level), Text: a.Text}
}

func (m *Model) View() string {
	if m.IsQuitting() || len(m.panels) == 0 {
		return ""
	}
	p := m.panels[m.active]
	var b strings.Builder
	b.WriteString(components.TitleStyle.Render("watchdeck") + "\n\n")
	b.WriteString(m.renderPills() + "\n\n")
	b.WriteString(m.renderButton(p) + "\n")
	if m.alert.Text != "" {
		level := m.alert.Level
		if level == "" {
			level = string(uisync.LevelInfo)
		}
		b.WriteString(components.LevelStyle(level).Render("["+level+"]") + " " + m.alert.Text + "\n")
	}
	b.WriteString("\n" + m.renderStatus(p) + "\n")
	b.WriteString(m.renderTitles(p) + "\n\n")
	b.WriteString(components.MutedStyle.Render("tab switch • enter run/stop • ←/→ list • p progress • s setup • q quit"))
	return b.String()
}

func (m *Model) renderPills() string {
	pills := make([]string, 0, len(m.panels))
	locked := m.locked()
	for i, p := range m.panels {
		label := p.desc.Module.String()
		switch {
		case i == m.active:
			pills = append(pills, components.ActivePillStyle.Render(label))
		case locked:
			pills = append(pills, components.LockedPillStyle.Render(label))
		default:
			pills = append(pills, components.PillStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, pills...)
}

func (m *Model) renderButton(p *jobPanel) string {
	style := components.ButtonStyle
	if p.button.Stop {
		style = components.StopButtonStyle
	}
	out := style.Render(p.button.Label)
	if m.busy {
		out += " " + m.spinner.View()
	}
	return out
}

func (m *Model) renderStatus(p *jobPanel) string {
	if len(p.status) == 0 {
		return components.MutedStyle.Render("No progress yet.")
	}
	if !m.state.PanelExpanded(p.desc.ProgressPanelID) {
		return p.status[0] + components.MutedStyle.Render(" (p to expand)")
	}
	style := components.PanelStyle
	if w := m.Width(); w > 8 {
		style = style.Width(w - 4)
	}
	return style.Render(strings.Join(p.status, "\n"))
}

func (m *Model) renderTitles(p *jobPanel) string {
	lists := core.WatchLists()
	tabs := make([]string, 0, len(lists))
	for i, l := range lists {
		label := fmt.Sprintf("%s (%d)", l, p.titles.Count(string(l)))
		if i == p.listIdx {
			label = components.TitleStyle.Render(label)
		} else {
			label = components.MutedStyle.Render(label)
		}
		tabs = append(tabs, label)
	}
	var b strings.Builder
	b.WriteString(strings.Join(tabs, "  "))
	if len(p.titles.Items) == 0 {
		b.WriteString("\n" + components.MutedStyle.Render("No titles."))
	}
	for _, item := range p.titles.Items {
		b.WriteString("\n  • " + item)
	}
	return b.String()
}
