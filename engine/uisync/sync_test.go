package uisync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/tabctx"
)

type harness struct {
	ctrl   *job.Controller
	sender *scriptedSender
	view   *MockView
	sync   *Sync
}

func newHarness(t *testing.T, username string) *harness {
	t.Helper()
	return newHarnessEvery(t, username, 40*time.Millisecond)
}

func newHarnessEvery(t *testing.T, username string, interval time.Duration) *harness {
	t.Helper()
	desc, err := core.NewDescriptor(core.JobParse, interval)
	require.NoError(t, err)
	sender := newScriptedSender()
	ctrl := job.NewController(desc, sender, tabctx.NewResolver(tabctx.NewState(tabctx.PillParser), desc))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ctrl.Shutdown(ctx)
	})
	view := &MockView{}
	users := func(m core.ModuleName) string {
		if m == core.ModuleParser {
			return username
		}
		return ""
	}
	return &harness{ctrl: ctrl, sender: sender, view: view, sync: New(ctrl, view, users)}
}

func (h *harness) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-h.ctrl.Notifier().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not settle")
	}
}

func TestSync_Click(t *testing.T) {
	t.Run("Should refuse to start without a username", func(t *testing.T) {
		h := newHarness(t, "")
		h.view.On("ShowAlert", NoticeAlert(LevelFail, "User not authorized.")).Return().Once()

		err := h.sync.Click(t.Context())

		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Zero(t, h.sender.count())
		assert.Equal(t, job.StateIdle, h.ctrl.State())
		h.view.AssertExpectations(t)
		h.view.AssertNotCalled(t, "SetSpinner", mock.Anything)
	})

	t.Run("Should render the start answer and switch to the stop affordance", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbStart, &action.Response{
			Status:        "done",
			Msg:           "<div>Action started.</div>",
			StatusbarTmpl: "<div id=\"parse_accordion_item\"/>",
		}).script(action.VerbAsk, &action.Response{Status: "processed"})

		require.NoError(t, h.sync.Click(t.Context()))

		h.view.AssertCalled(t, "SetSpinner", true)
		h.view.AssertCalled(t, "ShowAlert", FragmentAlert("<div>Action started.</div>"))
		h.view.AssertCalled(t, "FillStatusbar", core.JobParse, "<div id=\"parse_accordion_item\"/>")
		assert.Equal(t, []Button{ButtonStop(core.JobParse)}, h.view.buttons())
		assert.Equal(t, "Stop", h.view.buttons()[0].Label)
	})

	t.Run("Should show the generic notice when start fails without a message", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbStart, &action.Response{Status: "fail"})

		err := h.sync.Click(t.Context())

		assert.ErrorIs(t, err, job.ErrStartFailed)
		h.view.AssertCalled(t, "ShowAlert", NoticeAlert(LevelFail, "Fail."))
		h.view.AssertCalled(t, "SetSpinner", false)
		assert.Equal(t, []Button{ButtonDo(core.JobParse)}, h.view.buttons())
		assert.Equal(t, job.StateIdle, h.ctrl.State())
	})

	t.Run("Should stop an active job on the second click", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk, &action.Response{Status: "processed"}).
			script(action.VerbStop, &action.Response{Status: "done", Msg: "<div>Action stopped.</div>"})
		require.NoError(t, h.sync.Click(t.Context()))

		require.NoError(t, h.sync.Click(t.Context()))
		h.waitTerminal(t)

		h.view.AssertCalled(t, "ShowAlert", FragmentAlert("<div>Action stopped.</div>"))
		assert.Equal(t, []Button{ButtonStop(core.JobParse), ButtonDo(core.JobParse)}, h.view.buttons())
		assert.Equal(t, "Parse", h.view.buttons()[1].Label)
		assert.Equal(t, job.StateIdle, h.ctrl.State())
	})
}

func TestSync_ClickSettled(t *testing.T) {
	t.Run("Should end on the idle affordance when the run settles right after the start", func(t *testing.T) {
		for range 100 {
			h := newHarnessEvery(t, "alice", time.Nanosecond)
			h.view.On("ShowAlert", mock.Anything).Run(func(mock.Arguments) {
				time.Sleep(200 * time.Microsecond)
			}).Return()
			h.view.permissive()

			require.NoError(t, h.sync.Click(t.Context()))
			h.waitTerminal(t)

			assert.Equal(t, job.StateIdle, h.ctrl.State())
			assert.Equal(t, []Button{ButtonStop(core.JobParse), ButtonDo(core.JobParse)}, h.view.buttons())
		}
	})

	t.Run("Should reset the view when the stop request fails in transport", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk, &action.Response{Status: "processed"}).
			fail(action.VerbStop, &action.TransportError{Verb: action.VerbStop, Err: errors.New("connection refused")})
		require.NoError(t, h.sync.Click(t.Context()))

		err := h.sync.Click(t.Context())
		h.waitTerminal(t)

		assert.ErrorIs(t, err, job.ErrStopFailed)
		h.view.AssertCalled(t, "ShowAlert", NoticeAlert(LevelFail, "Fail."))
		h.view.AssertCalled(t, "SetSpinner", false)
		assert.Equal(t, []Button{ButtonStop(core.JobParse), ButtonDo(core.JobParse)}, h.view.buttons())
		assert.Equal(t, job.StateIdle, h.ctrl.State())
	})

	t.Run("Should show a neutral notice for an accepted stop without a message", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk, &action.Response{Status: "processed"}).
			script(action.VerbStop, &action.Response{Status: "done"})
		require.NoError(t, h.sync.Click(t.Context()))

		require.NoError(t, h.sync.Click(t.Context()))
		h.waitTerminal(t)

		h.view.AssertCalled(t, "ShowAlert", NoticeAlert(LevelInfo, "Stopped."))
		h.view.AssertNotCalled(t, "ShowAlert", NoticeAlert(LevelFail, "Fail."))
	})
}

func TestSync_Attach(t *testing.T) {
	t.Run("Should render progress then the completed run", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk,
			&action.Response{Status: "processed", StatusbarTmpl: "<p>1/2</p>", TitleTmpl: "<li>a</li>"},
			&action.Response{Status: "done", Msg: "<div>Completed.</div>", StatusbarTmpl: "<p>2/2</p>", TitleTmpl: "<li>a</li><li>b</li>"},
		)
		require.NoError(t, h.sync.Click(t.Context()))

		h.waitTerminal(t)

		h.view.AssertCalled(t, "FillStatusbar", core.JobParse, "<p>1/2</p>")
		h.view.AssertCalled(t, "SetTitles", "parsed_titles", "<li>a</li>")
		h.view.AssertCalled(t, "ShowAlert", FragmentAlert("<div>Completed.</div>"))
		h.view.AssertCalled(t, "FillStatusbar", core.JobParse, "<p>2/2</p>")
		h.view.AssertCalled(t, "SetTitles", "parsed_titles", "<li>a</li><li>b</li>")
		h.view.AssertCalled(t, "SetSpinner", false)
		buttons := h.view.buttons()
		assert.Equal(t, ButtonDo(core.JobParse), buttons[len(buttons)-1])
	})

	t.Run("Should render a rejected poll with the server message", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk, &action.Response{Status: "fail", Msg: "<div>Action failed.</div>"})
		require.NoError(t, h.sync.Click(t.Context()))

		h.waitTerminal(t)

		h.view.AssertCalled(t, "ShowAlert", FragmentAlert("<div>Action failed.</div>"))
		h.view.AssertNotCalled(t, "ShowAlert", NoticeAlert(LevelFail, "Fail."))
		h.view.AssertCalled(t, "SetSpinner", false)
	})

	t.Run("Should render the generic notice for a status-less poll answer", func(t *testing.T) {
		h := newHarness(t, "alice")
		h.view.permissive()
		h.sender.script(action.VerbAsk, &action.Response{})
		require.NoError(t, h.sync.Click(t.Context()))

		h.waitTerminal(t)

		h.view.AssertCalled(t, "ShowAlert", NoticeAlert(LevelFail, "Fail."))
		h.view.AssertNotCalled(t, "SetTitles", mock.Anything, mock.Anything)
	})
}

func TestAlert(t *testing.T) {
	t.Run("Should tell fragments from notices", func(t *testing.T) {
		assert.True(t, FragmentAlert("<div/>").IsFragment())
		assert.False(t, NoticeAlert(LevelWarning, "careful").IsFragment())
	})
}
