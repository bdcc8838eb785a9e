package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/watchdeck/watchdeck/cli/tui/components"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/notify"
	"github.com/watchdeck/watchdeck/engine/uisync"
)

// event is one line of the JSON event stream.
type event struct {
	Event  string   `json:"event"`
	Job    string   `json:"job"`
	Level  string   `json:"level,omitempty"`
	Text   string   `json:"text,omitempty"`
	Lines  []string `json:"lines,omitempty"`
	List   string   `json:"list,omitempty"`
	Items  []string `json:"items,omitempty"`
	Busy   *bool    `json:"busy,omitempty"`
	Label  string   `json:"label,omitempty"`
	Kind   string   `json:"kind,omitempty"`
	Status string   `json:"status,omitempty"`
}

// streamView prints every view update of one job as a text line or a JSON
// line. Updates arrive from the poll goroutine.
type streamView struct {
	mu    sync.Mutex
	out   io.Writer
	job   core.JobName
	json  bool
	color bool
}

var _ uisync.View = (*streamView)(nil)

func newStreamView(out io.Writer, job core.JobName, asJSON, color bool) *streamView {
	return &streamView{out: out, job: job, json: asJSON, color: color}
}

func (v *streamView) ShowAlert(a uisync.Alert) {
	line := components.AlertLine{Level: string(a.Level), Text: a.Text}
	if a.IsFragment() {
		line = components.FlattenAlert(a.Fragment)
	}
	if line.Text == "" {
		return
	}
	if v.json {
		v.write(event{Event: "alert", Level: line.Level, Text: line.Text})
		return
	}
	level := line.Level
	if level == "" {
		level = "info"
	}
	v.print(fmt.Sprintf("%s %s", v.style(level, "["+level+"]"), line.Text))
}

func (v *streamView) FillStatusbar(_ core.JobName, tmpl string) {
	lines := components.FlattenStatusbar(tmpl)
	if len(lines) == 0 {
		return
	}
	if v.json {
		v.write(event{Event: "statusbar", Lines: lines})
		return
	}
	v.print(strings.Join(lines, " | "))
}

func (v *streamView) SetTitles(_, tmpl string) {
	list := components.FlattenTitles(tmpl)
	active := list.ActiveTab()
	if v.json {
		v.write(event{Event: "titles", List: active, Items: list.Items})
		return
	}
	if active == "" && len(list.Items) == 0 {
		return
	}
	text := "no titles"
	if len(list.Items) > 0 {
		text = strings.Join(list.Items, ", ")
	}
	v.print(fmt.Sprintf("%s (%d): %s", active, len(list.Items), text))
}

func (v *streamView) SetSpinner(busy bool) {
	if v.json {
		v.write(event{Event: "spinner", Busy: &busy})
		return
	}
	if busy {
		v.print(v.style("info", "working..."))
	}
}

func (v *streamView) SetActionButton(b uisync.Button) {
	if v.json {
		v.write(event{Event: "button", Label: b.Label})
	}
}

// Outcome prints the terminal outcome of the run.
func (v *streamView) Outcome(o notify.Outcome) {
	r := o.Response()
	if v.json {
		v.write(event{Event: "outcome", Kind: o.Kind().String(), Status: r.Status})
		return
	}
	level := "done"
	if o.Kind() == notify.KindRejected {
		level = "fail"
	}
	v.print(fmt.Sprintf("%s %s finished: %s", v.style(level, "=>"), v.job, o.Kind()))
}

func (v *streamView) style(level, s string) string {
	if !v.color {
		return s
	}
	return components.LevelStyle(level).Render(s)
}

func (v *streamView) print(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, line)
}

func (v *streamView) write(e event) {
	e.Job = v.job.String()
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, string(data))
}
