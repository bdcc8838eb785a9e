package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

type Handler func(ctx context.Context, o Outcome)

type subscription struct {
	kind    Kind // zero matches every kind
	handler Handler
}

// Notifier fans the outcomes of one job run out to its subscribers.
//
// Handlers run synchronously on the emitting goroutine, in registration
// order. There is no buffering: a handler registered after an emission never
// sees it. The first terminal outcome seals the notifier; later emissions
// are dropped. A panicking handler is logged and does not stop the others.
// Handlers must not call Emit on the notifier that invoked them.
type Notifier struct {
	job    core.JobName
	run    uint64
	mu     sync.Mutex
	emitMu sync.Mutex
	subs   []subscription
	sealed bool
	result Outcome
	done   chan struct{}
}

// New returns a notifier for one run of job.
func New(job core.JobName, run uint64) *Notifier {
	return &Notifier{
		job:  job,
		run:  run,
		done: make(chan struct{}),
	}
}

func (n *Notifier) Job() core.JobName {
	return n.job
}

// Run is the controller generation this notifier belongs to.
func (n *Notifier) Run() uint64 {
	return n.run
}

func (n *Notifier) Subscribe(kind Kind, h Handler) {
	if h == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, subscription{kind: kind, handler: h})
}

func (n *Notifier) SubscribeAll(h Handler) {
	n.Subscribe(0, h)
}

// Emit delivers o to the matching handlers and reports whether it was
// delivered. Emissions are serialized.
func (n *Notifier) Emit(ctx context.Context, o Outcome) bool {
	if o.kind == 0 {
		return false
	}
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	n.mu.Lock()
	if n.sealed {
		n.mu.Unlock()
		return false
	}
	if o.Terminal() {
		n.sealed = true
		n.result = o
	}
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		if s.kind == 0 || s.kind == o.kind {
			n.invoke(ctx, s.handler, o)
		}
	}
	if o.Terminal() {
		close(n.done)
	}
	return true
}

// Done is closed once the terminal outcome has been delivered.
func (n *Notifier) Done() <-chan struct{} {
	return n.done
}

// Result returns the terminal outcome, if any.
func (n *Notifier) Result() (Outcome, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result, n.sealed
}

func (n *Notifier) Sealed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sealed
}

func (n *Notifier) invoke(ctx context.Context, h Handler, o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error(
				"notifier handler panicked",
				"job", n.job,
				"run", n.run,
				"kind", o.kind,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	h(ctx, o)
}
