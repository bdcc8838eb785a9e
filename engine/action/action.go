package action

import "github.com/watchdeck/watchdeck/engine/core"

// -----------------------------------------------------------------------------
// Verb
// -----------------------------------------------------------------------------

type Verb string

const (
	VerbStart Verb = "start"
	VerbStop  Verb = "stop"
	VerbAsk   Verb = "ask"
)

func (v Verb) String() string {
	return string(v)
}

// -----------------------------------------------------------------------------
// Response
// -----------------------------------------------------------------------------

const (
	StatusDone      = "done"
	StatusProcessed = "processed"
	StatusFail      = "fail"
)

// Response is the decoded body of any /action or /settingup call. Msg,
// StatusbarTmpl and TitleTmpl are opaque rendered fragments.
type Response struct {
	Status        string `json:"status"`
	Msg           string `json:"msg,omitempty"`
	StatusbarTmpl string `json:"statusbar_tmpl,omitempty"`
	TitleTmpl     string `json:"title_tmpl,omitempty"`
}

// FailResponse is the canonical placeholder substituted for any failed or
// malformed call.
func FailResponse() Response {
	return Response{Status: StatusFail}
}

// Normalize folds a transport failure or a status-less body into the fail
// placeholder. Callers normalize before branching on status.
func Normalize(resp *Response, err error) Response {
	if err != nil || resp == nil || resp.Status == "" {
		return FailResponse()
	}
	return *resp
}

type Class int

const (
	ClassOther Class = iota
	ClassDone
	ClassProcessed
)

func (c Class) String() string {
	switch c {
	case ClassDone:
		return "done"
	case ClassProcessed:
		return "processed"
	default:
		return "other"
	}
}

// Classify maps a response onto the three branches of the poll loop.
func Classify(r Response) Class {
	switch r.Status {
	case StatusDone:
		return ClassDone
	case StatusProcessed:
		return ClassProcessed
	default:
		return ClassOther
	}
}

// Failed reports an explicit fail status or a missing one.
func Failed(r Response) bool {
	return r.Status == "" || r.Status == StatusFail
}

// -----------------------------------------------------------------------------
// Request payloads
// -----------------------------------------------------------------------------

// Args carries the live view hints sent with every verb.
type Args struct {
	SelectedTab *string
	Expanded    bool
}

type optionalArgs struct {
	SelectedTab  *string `json:"selected_tab"`
	ProgressXpnd bool    `json:"progress_xpnd"`
}

// SetupRequest authorizes a settings module against a source site.
type SetupRequest struct {
	Module         core.ModuleName
	SelectedModule string
	Cookies        string
}

// Selection is the last-viewed UI state flushed on exit.
type Selection struct {
	PillID      string
	ParsedTab   string
	ExportedTab string
}
