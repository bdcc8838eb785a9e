package notify

import "github.com/watchdeck/watchdeck/engine/action"

type Kind int

const (
	KindProgressed Kind = iota + 1
	KindResolved
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindProgressed:
		return "progressed"
	case KindResolved:
		return "resolved"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether the kind ends a run.
func (k Kind) Terminal() bool {
	return k == KindResolved || k == KindRejected
}

// Outcome is one observation of a run. The zero value is not a valid outcome;
// use Progressed, Resolved or Rejected.
type Outcome struct {
	kind     Kind
	response action.Response
}

func Progressed(r action.Response) Outcome {
	return Outcome{kind: KindProgressed, response: r}
}

func Resolved(r action.Response) Outcome {
	return Outcome{kind: KindResolved, response: r}
}

func Rejected(r action.Response) Outcome {
	return Outcome{kind: KindRejected, response: r}
}

func (o Outcome) Kind() Kind {
	return o.kind
}

func (o Outcome) Response() action.Response {
	return o.response
}

func (o Outcome) Terminal() bool {
	return o.kind.Terminal()
}
