package uisync

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/notify"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

var ErrUnauthorized = errors.New("user not authorized")

const (
	msgUnauthorized = "User not authorized."
	msgGenericFail  = "Fail."
	msgStopped      = "Stopped."
)

// Controller is the part of job.Controller the sync layer drives.
type Controller interface {
	Descriptor() core.Descriptor
	State() job.State
	Start(ctx context.Context, opts ...job.StartOption) (action.Response, error)
	Stop(ctx context.Context) (action.Response, error)
	Subscribe(fn func(*notify.Notifier))
}

// UsernameFunc returns the authorized user of a settings module, or "".
type UsernameFunc func(module core.ModuleName) string

// Sync keeps one View consistent with one job controller.
type Sync struct {
	ctrl     Controller
	view     View
	username UsernameFunc
}

// New binds view to ctrl. Every future run of ctrl is attached before it
// emits anything.
func New(ctrl Controller, view View, username UsernameFunc) *Sync {
	s := &Sync{ctrl: ctrl, view: view, username: username}
	ctrl.Subscribe(s.Attach)
	return s
}

// Attach subscribes the render handlers to the notifier of one run.
func (s *Sync) Attach(n *notify.Notifier) {
	desc := s.ctrl.Descriptor()
	n.Subscribe(notify.KindResolved, func(_ context.Context, o notify.Outcome) {
		r := o.Response()
		s.view.ShowAlert(FragmentAlert(r.Msg))
		s.view.FillStatusbar(desc.Name, r.StatusbarTmpl)
		s.view.SetSpinner(false)
		s.view.SetActionButton(ButtonDo(desc.Name))
		s.view.SetTitles(desc.TitleContainerID, r.TitleTmpl)
	})
	n.Subscribe(notify.KindRejected, func(_ context.Context, o notify.Outcome) {
		r := o.Response()
		s.showResult(r)
		if r.StatusbarTmpl != "" {
			s.view.FillStatusbar(desc.Name, r.StatusbarTmpl)
		}
		s.view.SetSpinner(false)
		s.view.SetActionButton(ButtonDo(desc.Name))
	})
	n.Subscribe(notify.KindProgressed, func(_ context.Context, o notify.Outcome) {
		r := o.Response()
		s.view.FillStatusbar(desc.Name, r.StatusbarTmpl)
		s.view.SetTitles(desc.TitleContainerID, r.TitleTmpl)
	})
}

// Click is the action button handler. An idle job is started once the
// module has an authorized user; an active one is stopped. Failures are
// rendered by the run's Rejected handler and also returned.
func (s *Sync) Click(ctx context.Context) error {
	desc := s.ctrl.Descriptor()
	log := logger.FromContext(ctx).With("job", desc.Name)

	switch state := s.ctrl.State(); state {
	case job.StateIdle:
		if s.username == nil || s.username(desc.Module) == "" {
			s.view.ShowAlert(NoticeAlert(LevelFail, msgUnauthorized))
			log.Debug("start refused", "module", desc.Module)
			return fmt.Errorf("%w: %s", ErrUnauthorized, desc.Module)
		}
		s.view.SetSpinner(true)
		_, err := s.ctrl.Start(ctx, job.OnStarted(func(r action.Response) {
			s.view.ShowAlert(FragmentAlert(r.Msg))
			if r.StatusbarTmpl != "" {
				s.view.FillStatusbar(desc.Name, r.StatusbarTmpl)
			}
			s.view.SetActionButton(ButtonStop(desc.Name))
		}))
		return err
	case job.StateRunning, job.StateStarting:
		_, err := s.ctrl.Stop(ctx)
		return err
	default:
		return fmt.Errorf("%w: %s is %s", job.ErrBusy, desc.Name, state)
	}
}

// showResult renders the server message. Without one, a failure gets the
// generic notice and an accepted stop a neutral one.
func (s *Sync) showResult(r action.Response) {
	switch {
	case r.Msg != "":
		s.view.ShowAlert(FragmentAlert(r.Msg))
	case action.Failed(r):
		s.view.ShowAlert(NoticeAlert(LevelFail, msgGenericFail))
	default:
		s.view.ShowAlert(NoticeAlert(LevelInfo, msgStopped))
	}
}
