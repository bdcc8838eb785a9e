package uisync

import "github.com/watchdeck/watchdeck/engine/core"

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

type Level string

const (
	LevelDone    Level = "done"
	LevelInfo    Level = "info"
	LevelFail    Level = "fail"
	LevelWarning Level = "warning"
)

// Alert is either a fragment rendered by the server or a notice built on the
// client from a level and a text.
type Alert struct {
	Fragment string
	Level    Level
	Text     string
}

func FragmentAlert(html string) Alert {
	return Alert{Fragment: html}
}

func NoticeAlert(level Level, text string) Alert {
	return Alert{Level: level, Text: text}
}

func (a Alert) IsFragment() bool {
	return a.Level == "" && a.Text == ""
}

// -----------------------------------------------------------------------------
// Action button
// -----------------------------------------------------------------------------

const stopLabel = "Stop"

// Button is the affordance of the action button of one job. While Stop is set
// the other pills and the settings trigger are locked.
type Button struct {
	Job   core.JobName
	Label string
	Stop  bool
}

// ButtonDo is the idle affordance, labeled with the capitalized job name.
func ButtonDo(job core.JobName) Button {
	return Button{Job: job, Label: job.Label()}
}

func ButtonStop(job core.JobName) Button {
	return Button{Job: job, Label: stopLabel, Stop: true}
}

// View renders the job state. Implementations are called from the poll
// goroutine of a run and must marshal onto their own event loop.
type View interface {
	ShowAlert(a Alert)
	FillStatusbar(job core.JobName, tmpl string)
	SetTitles(containerID, tmpl string)
	SetSpinner(busy bool)
	SetActionButton(b Button)
}
