package jobserver

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/watchdeck/watchdeck/engine/core"
)

// Alert levels of the rendered alert fragment.
const (
	LevelDone    = "done"
	LevelInfo    = "info"
	LevelFail    = "fail"
	LevelWarning = "warning"
)

const alertTmpl = `<div class="alert alert-{{ levelClass .Level }} alert-dismissible" role="alert">` +
	`<strong>{{ .Level }}</strong> <span>{{ .Message }}</span></div>`

const statusbarTmpl = `<div class="accordion-item" id="{{ .Job }}_accordion_item">` +
	`<h2 class="accordion-header"><button class="accordion-button{{ if not .Expanded }} collapsed{{ end }}">{{ .Job | title }} progress</button></h2>` +
	`<div id="{{ .Job }}_accordion_collapse" class="accordion-collapse collapse{{ if .Expanded }} show{{ end }}">` +
	`<div class="progress-all" data-now="{{ .Progress.AllNow }}" data-max="{{ .Progress.AllMax }}">` +
	`All: {{ .Progress.AllNow }}/{{ .Progress.AllMax }} ({{ div (mul .Progress.AllNow 100) (max .Progress.AllMax 1) }}%)</div>` +
	`<div class="progress-current" data-now="{{ .Progress.CurrentNow }}" data-max="{{ .Progress.CurrentMax }}">` +
	`{{ .Progress.List | default "watch" }}: {{ .Progress.CurrentNow }}/{{ .Progress.CurrentMax }}</div>` +
	`</div></div>`

const titlesTmpl = `<ul class="nav nav-tabs">{{ range .Lists }}` +
	`<li class="nav-item{{ if eq . $.SelectedList }} active{{ end }}">{{ . }} <span class="badge">{{ len (index $.Titles .) }}</span></li>` +
	`{{ end }}</ul><ul class="list-group">` +
	`{{ range index .Titles .SelectedList }}<li class="list-group-item">{{ . }}</li>` +
	`{{ else }}<li class="list-group-item empty">No titles.</li>{{ end }}</ul>`

// Renderer builds the HTML fragments returned in responses.
type Renderer struct {
	alert     *template.Template
	statusbar *template.Template
	titles    *template.Template
}

func NewRenderer() (*Renderer, error) {
	funcs := sprig.HtmlFuncMap()
	funcs["levelClass"] = levelClass
	parse := func(name, text string) (*template.Template, error) {
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		return t, nil
	}
	r := &Renderer{}
	var err error
	if r.alert, err = parse("alert", alertTmpl); err != nil {
		return nil, err
	}
	if r.statusbar, err = parse("statusbar", statusbarTmpl); err != nil {
		return nil, err
	}
	if r.titles, err = parse("titles", titlesTmpl); err != nil {
		return nil, err
	}
	return r, nil
}

func levelClass(level string) string {
	switch level {
	case LevelDone:
		return "success"
	case LevelInfo:
		return "primary"
	case LevelFail:
		return "danger"
	case LevelWarning:
		return "warning"
	default:
		return "secondary"
	}
}

func (r *Renderer) Alert(level, message string) (string, error) {
	return execute(r.alert, map[string]any{"Level": level, "Message": message})
}

func (r *Renderer) Statusbar(job core.JobName, expanded bool, p Progress) (string, error) {
	return execute(r.statusbar, map[string]any{
		"Job":      string(job),
		"Expanded": expanded,
		"Progress": p,
	})
}

// Titles renders the title list of the selected watch list; an empty or
// unknown selection falls back to the first list.
func (r *Renderer) Titles(titles map[core.WatchList][]string, selected *string) (string, error) {
	list := core.ListWatch
	if selected != nil && core.IsWatchList(*selected) {
		list = core.WatchList(*selected)
	}
	if titles == nil {
		titles = map[core.WatchList][]string{}
	}
	return execute(r.titles, map[string]any{
		"Lists":        core.WatchLists(),
		"Titles":       titles,
		"SelectedList": list,
	})
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
