package job

import "errors"

var (
	ErrBusy        = errors.New("job is busy")
	ErrNotRunning  = errors.New("job is not running")
	ErrStartFailed = errors.New("job start failed")
	ErrStopFailed  = errors.New("job stop failed")
	// ErrSuperseded is returned by Start when Stop was called before the
	// start response arrived.
	ErrSuperseded = errors.New("job start superseded by stop")
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Active reports whether a click on the action button means "stop".
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}
