package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/notify"
	"github.com/watchdeck/watchdeck/engine/tabctx"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

// HintSource supplies the live view hints sent with every request.
type HintSource interface {
	Snapshot(job core.JobName) tabctx.Snapshot
}

// Controller owns the lifecycle of one job: Idle -> Starting -> Running ->
// Idle, with Stopping reachable from Starting and Running.
//
// Each Start creates a fresh Notifier that receives zero or more Progressed
// outcomes followed by exactly one Resolved or Rejected. The mutex is never
// held across a network call and outcomes are emitted outside it. Every
// transition bumps or checks gen so that a response belonging to a
// superseded lifecycle is dropped.
type Controller struct {
	desc   core.Descriptor
	sender action.Sender
	hints  HintSource

	mu          sync.Mutex
	state       State
	gen         uint64
	cancel      context.CancelFunc
	notifier    *notify.Notifier
	subscribers []func(*notify.Notifier)
	loops       sync.WaitGroup
}

func NewController(desc core.Descriptor, sender action.Sender, hints HintSource) *Controller {
	return &Controller{
		desc:   desc,
		sender: sender,
		hints:  hints,
	}
}

func (c *Controller) Descriptor() core.Descriptor {
	return c.desc
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Notifier returns the notifier of the current or most recent run.
func (c *Controller) Notifier() *notify.Notifier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifier
}

// Subscribe registers fn to receive the notifier of every future run before
// any outcome is emitted on it. fn runs under the controller lock and must not
// call back into the controller.
func (c *Controller) Subscribe(fn func(*notify.Notifier)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// StartOption configures a single Start call.
type StartOption func(*startOptions)

type startOptions struct {
	started func(action.Response)
}

// OnStarted runs fn with the start answer once the run is Running, before the
// poll loop is armed, so fn is ordered before every outcome of the run. fn
// runs under the controller lock and must not call back into the controller.
func OnStarted(fn func(action.Response)) StartOption {
	return func(o *startOptions) {
		o.started = fn
	}
}

// Start sends the start verb. On success the run enters Running and the poll
// loop is armed under a context derived from ctx; the returned response is
// the server's start answer. A fail or status-less answer, or a transport
// failure, emits Rejected and returns ErrStartFailed.
func (c *Controller) Start(ctx context.Context, opts ...StartOption) (action.Response, error) {
	log := c.log(ctx)
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return action.FailResponse(), fmt.Errorf("%w: %s is %s", ErrBusy, c.desc.Name, state)
	}
	c.gen++
	gen := c.gen
	n := notify.New(c.desc.Name, gen)
	// subscribers attach before Starting is observable, so a Stop racing the
	// start is always rendered
	for _, fn := range c.subscribers {
		fn(n)
	}
	c.notifier = n
	c.state = StateStarting
	c.mu.Unlock()

	resp, err := c.sender.Send(ctx, c.desc.Name, action.VerbStart, c.hints.Snapshot(c.desc.Name).Args())
	r := action.Normalize(resp, err)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		log.Debug("discarding start response of a stopped run", "run", gen, "status", r.Status)
		return r, ErrSuperseded
	}
	if action.Failed(r) {
		c.state = StateIdle
		c.mu.Unlock()
		n.Emit(context.WithoutCancel(ctx), notify.Rejected(r))
		if err == nil {
			err = fmt.Errorf("server answered %q", r.Status)
		}
		log.Warn("job start failed", "run", gen, "error", err)
		return r, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateRunning
	if o.started != nil {
		o.started(r)
	}
	c.loops.Go(func() {
		c.poll(loopCtx, gen, n)
	})
	c.mu.Unlock()

	log.Info("job started", "run", gen, "interval", c.desc.PollInterval)
	return r, nil
}

// Stop cancels the poll loop immediately and sends the stop verb. Whatever
// the answer, the controller returns to Idle and emits Rejected with the
// normalized stop response. A failed stop returns ErrStopFailed; the remote
// job may then still be running unobserved.
func (c *Controller) Stop(ctx context.Context) (action.Response, error) {
	log := c.log(ctx)

	c.mu.Lock()
	switch c.state {
	case StateRunning, StateStarting:
	case StateStopping:
		c.mu.Unlock()
		return action.FailResponse(), fmt.Errorf("%w: %s is already stopping", ErrBusy, c.desc.Name)
	default:
		c.mu.Unlock()
		return action.FailResponse(), fmt.Errorf("%w: %s", ErrNotRunning, c.desc.Name)
	}
	c.gen++
	c.release()
	c.state = StateStopping
	n := c.notifier
	c.mu.Unlock()

	resp, err := c.sender.Send(ctx, c.desc.Name, action.VerbStop, c.hints.Snapshot(c.desc.Name).Args())
	r := action.Normalize(resp, err)

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	n.Emit(context.WithoutCancel(ctx), notify.Rejected(r))

	if action.Failed(r) {
		if err == nil {
			err = fmt.Errorf("server answered %q", r.Status)
		}
		log.Warn("job stop failed, remote job may still be running", "error", err)
		return r, fmt.Errorf("%w: %w", ErrStopFailed, err)
	}
	log.Info("job stopped")
	return r, nil
}

// Shutdown stops an active run, if any, and waits for poll loops to exit.
func (c *Controller) Shutdown(ctx context.Context) error {
	var stopErr error
	if c.State().Active() {
		if _, err := c.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, ErrBusy) {
			stopErr = err
		}
	}
	done := make(chan struct{})
	go func() {
		c.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
		return stopErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poll waits one interval, asks, and arms the next wait only after the
// answer settled, so at most one ask is in flight per run.
func (c *Controller) poll(ctx context.Context, gen uint64, n *notify.Notifier) {
	log := c.log(ctx).With("run", gen)
	emitCtx := context.WithoutCancel(ctx)
	timer := time.NewTimer(c.desc.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.abandon(emitCtx, gen, n)
			return
		case <-timer.C:
		}

		hints := c.hints.Snapshot(c.desc.Name)
		resp, err := c.sender.Send(ctx, c.desc.Name, action.VerbAsk, hints.Args())
		r := action.Normalize(resp, err)

		c.mu.Lock()
		if c.gen != gen || c.state != StateRunning {
			c.mu.Unlock()
			log.Debug("discarding ask response of a stopped run", "status", r.Status)
			return
		}
		switch action.Classify(r) {
		case action.ClassProcessed:
			c.mu.Unlock()
			n.Emit(emitCtx, notify.Progressed(r))
			timer.Reset(c.desc.PollInterval)
		case action.ClassDone:
			c.release()
			c.state = StateIdle
			c.mu.Unlock()
			log.Info("job completed")
			n.Emit(emitCtx, notify.Resolved(r))
			return
		default:
			c.release()
			c.state = StateIdle
			c.mu.Unlock()
			if err != nil {
				log.Warn("job poll failed", "error", err)
			} else {
				log.Warn("job rejected", "status", r.Status)
			}
			n.Emit(emitCtx, notify.Rejected(r))
			return
		}
	}
}

// abandon ends a run whose bounding context was canceled from outside.
func (c *Controller) abandon(ctx context.Context, gen uint64, n *notify.Notifier) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.release()
	c.state = StateIdle
	c.mu.Unlock()
	c.log(ctx).Warn("job context canceled while running", "run", gen)
	n.Emit(ctx, notify.Rejected(action.FailResponse()))
}

// release cancels the poll loop. Callers hold c.mu.
func (c *Controller) release() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) log(ctx context.Context) logger.Logger {
	return logger.FromContext(ctx).With("job", c.desc.Name)
}
