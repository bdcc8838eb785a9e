package jobserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/logger"
)

const (
	msgStarted        = "Action started."
	msgAlreadyRunning = "The action is already in progress."
	msgStopped        = "Action stopped."
	msgNotRunning     = "The action is not in progress."
	msgCompleted      = "Completed."
	msgTaskFailed     = "Action failed."
	msgCommonFail     = "Something went wrong."
	msgUnknownCommand = "Unknown command."
	msgAuthorized     = "User authorized."
	msgUnknownModule  = "Unknown module."
)

// command is one decoded /action request.
type command struct {
	job         core.JobName
	verb        action.Verb
	selectedTab *string
	expanded    bool
}

// commandResult is the answer plus whether the session must be saved.
type commandResult struct {
	resp  action.Response
	dirty bool
}

func (s *Server) runCommand(ctx context.Context, sess *Session, cmd command) (commandResult, error) {
	switch cmd.verb {
	case action.VerbStart:
		return s.startCommand(ctx, sess, cmd)
	case action.VerbAsk:
		return s.askCommand(ctx, sess, cmd)
	case action.VerbStop:
		return s.stopCommand(ctx, sess, cmd)
	default:
		return s.failWith(LevelFail, msgUnknownCommand)
	}
}

func (s *Server) startCommand(ctx context.Context, sess *Session, cmd command) (commandResult, error) {
	if id, ok := sess.Tasks[cmd.job]; ok {
		t, err := s.store.LoadTask(ctx, id)
		if err == nil && t.State == TaskPending {
			return s.failWith(LevelWarning, msgAlreadyRunning)
		}
	}
	module := sess.Users[cmd.job.Module()].SelectedModule
	if module == "" {
		module = s.cfg.Modules[cmd.job.Module()]
	}
	t, err := s.runner.Launch(ctx, cmd.job, module)
	if err != nil {
		logger.FromContext(ctx).Error("failed to launch task", "job", cmd.job, "error", err)
		return s.failWith(LevelFail, msgCommonFail)
	}
	s.metrics.TaskStarted(cmd.job)
	sess.Tasks[cmd.job] = t.ID
	sess.Stopped[cmd.job] = false

	resp := action.Response{Status: action.StatusDone}
	if resp.Msg, err = s.render.Alert(LevelInfo, msgStarted); err != nil {
		return commandResult{}, err
	}
	if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, t.Progress); err != nil {
		return commandResult{}, err
	}
	return commandResult{resp: resp, dirty: true}, nil
}

func (s *Server) askCommand(ctx context.Context, sess *Session, cmd command) (commandResult, error) {
	if sess.Stopped[cmd.job] {
		sess.Stopped[cmd.job] = false
		res, err := s.stoppedAnswer(cmd, Progress{})
		res.dirty = true
		return res, err
	}
	id, ok := sess.Tasks[cmd.job]
	if !ok {
		return s.failWith(LevelFail, msgCommonFail)
	}
	t, err := s.store.LoadTask(ctx, id)
	if errors.Is(err, ErrTaskNotFound) {
		return s.failWith(LevelFail, msgCommonFail)
	}
	if err != nil {
		return commandResult{}, err
	}

	switch t.State {
	case TaskRevoked:
		return s.stoppedAnswer(cmd, t.Progress)
	case TaskPending:
		resp := action.Response{Status: action.StatusProcessed}
		if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, t.Progress); err != nil {
			return commandResult{}, err
		}
		if resp.TitleTmpl, err = s.render.Titles(t.Titles, cmd.selectedTab); err != nil {
			return commandResult{}, err
		}
		return commandResult{resp: resp}, nil
	case TaskSuccess:
		resp := action.Response{Status: action.StatusDone}
		if resp.Msg, err = s.render.Alert(LevelDone, msgCompleted); err != nil {
			return commandResult{}, err
		}
		if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, t.Progress); err != nil {
			return commandResult{}, err
		}
		if resp.TitleTmpl, err = s.render.Titles(t.Titles, cmd.selectedTab); err != nil {
			return commandResult{}, err
		}
		return commandResult{resp: resp}, nil
	case TaskFailure:
		return s.failWith(LevelFail, msgTaskFailed)
	default:
		return s.failWith(LevelFail, msgCommonFail)
	}
}

func (s *Server) stopCommand(ctx context.Context, sess *Session, cmd command) (commandResult, error) {
	sess.Stopped[cmd.job] = true
	id, ok := sess.Tasks[cmd.job]
	if !ok {
		resp := action.Response{Status: action.StatusFail}
		var err error
		if resp.Msg, err = s.render.Alert(LevelWarning, msgNotRunning); err != nil {
			return commandResult{}, err
		}
		if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, Progress{}); err != nil {
			return commandResult{}, err
		}
		return commandResult{resp: resp, dirty: true}, nil
	}

	revoked := s.runner.Revoke(id)
	logger.FromContext(ctx).Info("task stop requested", "job", cmd.job, "task", id, "running", revoked)
	var progress Progress
	if t, err := s.store.LoadTask(ctx, id); err == nil {
		progress = t.Progress
	}
	resp := action.Response{Status: action.StatusDone}
	var err error
	if resp.Msg, err = s.render.Alert(LevelDone, msgStopped); err != nil {
		return commandResult{}, err
	}
	if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, progress); err != nil {
		return commandResult{}, err
	}
	return commandResult{resp: resp, dirty: true}, nil
}

func (s *Server) stoppedAnswer(cmd command, p Progress) (commandResult, error) {
	resp := action.Response{Status: action.StatusFail}
	var err error
	if resp.Msg, err = s.render.Alert(LevelInfo, msgStopped); err != nil {
		return commandResult{}, err
	}
	if resp.StatusbarTmpl, err = s.render.Statusbar(cmd.job, cmd.expanded, p); err != nil {
		return commandResult{}, err
	}
	return commandResult{resp: resp}, nil
}

// failWith answers fail with a rendered alert only.
func (s *Server) failWith(level, message string) (commandResult, error) {
	msg, err := s.render.Alert(level, message)
	if err != nil {
		return commandResult{}, fmt.Errorf("failed to render alert: %w", err)
	}
	return commandResult{resp: action.Response{Status: action.StatusFail, Msg: msg}}, nil
}
