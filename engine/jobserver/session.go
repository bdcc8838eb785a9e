package jobserver

import (
	"maps"
	"time"

	"github.com/watchdeck/watchdeck/engine/core"
)

// User is the authorized account of one settings module.
type User struct {
	SelectedModule string `json:"selected_module"`
	Username       string `json:"username"`
	Cookies        string `json:"cookies"`
}

// Selection is the last UI selection flushed by a client on exit.
type Selection struct {
	PillID      string `json:"selected_pill_id"`
	ParsedTab   string `json:"selected_parsed_tab"`
	ExportedTab string `json:"selected_exported_tab"`
}

// Session is the per-client state kept between requests.
type Session struct {
	ID        string                   `json:"id"`
	Users     map[core.ModuleName]User `json:"users"`
	Tasks     map[core.JobName]string  `json:"tasks"`
	Stopped   map[core.JobName]bool    `json:"stopped"`
	Selection Selection                `json:"selection"`
	UpdatedAt time.Time                `json:"updated_at"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:      id,
		Users:   make(map[core.ModuleName]User),
		Tasks:   make(map[core.JobName]string),
		Stopped: make(map[core.JobName]bool),
	}
}

// ensure fills maps left nil by a decoder.
func (s *Session) ensure() {
	if s.Users == nil {
		s.Users = make(map[core.ModuleName]User)
	}
	if s.Tasks == nil {
		s.Tasks = make(map[core.JobName]string)
	}
	if s.Stopped == nil {
		s.Stopped = make(map[core.JobName]bool)
	}
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Users = maps.Clone(s.Users)
	out.Tasks = maps.Clone(s.Tasks)
	out.Stopped = maps.Clone(s.Stopped)
	out.ensure()
	return &out
}

// -----------------------------------------------------------------------------
// Task
// -----------------------------------------------------------------------------

type TaskState string

const (
	TaskPending TaskState = "PENDING"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailure TaskState = "FAILURE"
	TaskRevoked TaskState = "REVOKED"
)

// Progress mirrors the two bars of the status panel.
type Progress struct {
	AllNow     int            `json:"all_now"`
	AllMax     int            `json:"all_max"`
	List       core.WatchList `json:"list"`
	CurrentNow int            `json:"current_now"`
	CurrentMax int            `json:"current_max"`
}

// Task is one simulated background run of a job.
type Task struct {
	ID        string                      `json:"id"`
	Job       core.JobName                `json:"job"`
	Module    string                      `json:"module"`
	State     TaskState                   `json:"state"`
	Progress  Progress                    `json:"progress"`
	Titles    map[core.WatchList][]string `json:"titles"`
	Error     string                      `json:"error,omitempty"`
	StartedAt time.Time                   `json:"started_at"`
	EndedAt   *time.Time                  `json:"ended_at,omitempty"`
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Titles = make(map[core.WatchList][]string, len(t.Titles))
	for k, v := range t.Titles {
		out.Titles[k] = append([]string(nil), v...)
	}
	if t.EndedAt != nil {
		ended := *t.EndedAt
		out.EndedAt = &ended
	}
	return &out
}
