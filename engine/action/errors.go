package action

import (
	"errors"
	"fmt"

	"github.com/watchdeck/watchdeck/engine/core"
)

var (
	ErrTransport         = errors.New("action transport failure")
	ErrMalformedResponse = errors.New("malformed action response")
)

// TransportError describes a call that produced no usable response: the
// request failed, the server answered non-2xx, or the body was not a JSON
// object.
type TransportError struct {
	Job        core.JobName
	Verb       Verb
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	target := e.Verb.String()
	if e.Job != "" {
		target = e.Job.String() + "/" + target
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d", ErrTransport, target, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", ErrTransport, target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
