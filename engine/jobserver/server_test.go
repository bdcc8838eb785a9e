package jobserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/engine/job"
	"github.com/watchdeck/watchdeck/engine/notify"
	"github.com/watchdeck/watchdeck/engine/tabctx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	store  *MemoryStore
	url    string
	client *action.Client
}

func newTestEnv(t *testing.T, duration time.Duration, steps int) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	srv, err := New(t.Context(), Config{
		TaskDuration: duration,
		TaskSteps:    steps,
		Modules: map[core.ModuleName]string{
			core.ModuleParser:   "animebuff_ru",
			core.ModuleExporter: "animego_org",
		},
	}, store)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Close(ctx)
	})
	client, err := action.NewClient(ts.URL, action.WithTimeout(2*time.Second))
	require.NoError(t, err)
	return &testEnv{server: srv, store: store, url: ts.URL, client: client}
}

func (e *testEnv) send(t *testing.T, job core.JobName, verb action.Verb) action.Response {
	t.Helper()
	resp, err := e.client.Send(t.Context(), job, verb, action.Args{})
	require.NoError(t, err)
	return *resp
}

func TestServer_Action(t *testing.T) {
	t.Run("Should run start, ask and done for a task", func(t *testing.T) {
		env := newTestEnv(t, 60*time.Millisecond, 3)

		started := env.send(t, core.JobParse, action.VerbStart)
		assert.Equal(t, "done", started.Status)
		assert.Contains(t, started.Msg, "Action started.")
		assert.Contains(t, started.Msg, "alert-primary")
		assert.Contains(t, started.StatusbarTmpl, "parse_accordion_item")

		var last action.Response
		require.Eventually(t, func() bool {
			last = env.send(t, core.JobParse, action.VerbAsk)
			return last.Status != "processed"
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "done", last.Status)
		assert.Contains(t, last.Msg, "Completed.")
		assert.Contains(t, last.StatusbarTmpl, "All: 3/3 (100%)")
		assert.Contains(t, last.TitleTmpl, "animebuff_ru title 1")
	})

	t.Run("Should report progress while the task is pending", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)
		env.send(t, core.JobExport, action.VerbStart)

		resp, err := env.client.Send(t.Context(), core.JobExport, action.VerbAsk, action.Args{Expanded: true})

		require.NoError(t, err)
		assert.Equal(t, "processed", resp.Status)
		assert.Empty(t, resp.Msg)
		assert.Contains(t, resp.StatusbarTmpl, "collapse show")
		assert.Contains(t, resp.TitleTmpl, "No titles.")
	})

	t.Run("Should refuse a second start while the task runs", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)
		env.send(t, core.JobParse, action.VerbStart)

		resp := env.send(t, core.JobParse, action.VerbStart)

		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "The action is already in progress.")
	})

	t.Run("Should stop a running task and report it once", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)
		env.send(t, core.JobParse, action.VerbStart)

		stopped := env.send(t, core.JobParse, action.VerbStop)
		assert.Equal(t, "done", stopped.Status)
		assert.Contains(t, stopped.Msg, "Action stopped.")
		assert.Contains(t, stopped.Msg, "alert-success")

		flagged := env.send(t, core.JobParse, action.VerbAsk)
		assert.Equal(t, "fail", flagged.Status)
		assert.Contains(t, flagged.Msg, "Action stopped.")
		assert.Contains(t, flagged.Msg, "alert-primary")

		require.Eventually(t, func() bool {
			r := env.send(t, core.JobParse, action.VerbAsk)
			return r.Status == "fail" && strings.Contains(r.Msg, "Action stopped.")
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Should warn when stopping a job that never started", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)

		resp := env.send(t, core.JobExport, action.VerbStop)

		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "The action is not in progress.")
		assert.Contains(t, resp.Msg, "alert-warning")
		assert.NotEmpty(t, resp.StatusbarTmpl)
	})

	t.Run("Should fail an ask without a task", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)

		resp := env.send(t, core.JobParse, action.VerbAsk)

		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "Something went wrong.")
	})

	t.Run("Should fail unknown commands and actions", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)

		resp := env.send(t, core.JobParse, action.Verb("pause"))
		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "Unknown command.")

		resp = env.send(t, core.JobName("import"), action.VerbStart)
		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "Unknown command.")
	})

	t.Run("Should keep sessions apart per client", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 2)
		env.send(t, core.JobParse, action.VerbStart)
		other, err := action.NewClient(env.url)
		require.NoError(t, err)

		resp, err := other.Send(t.Context(), core.JobParse, action.VerbAsk, action.Args{})

		require.NoError(t, err)
		assert.Equal(t, "fail", resp.Status)
		assert.Contains(t, resp.Msg, "Something went wrong.")
	})
}

func TestServer_Setup(t *testing.T) {
	t.Run("Should authorize a module and use its site for later tasks", func(t *testing.T) {
		env := newTestEnv(t, 20*time.Millisecond, 1)

		resp, err := env.client.Setup(t.Context(), action.SetupRequest{
			Module:         core.ModuleExporter,
			SelectedModule: "shikimori_one",
			Cookies:        "username=bob; sid=1",
		})
		require.NoError(t, err)
		assert.Equal(t, "done", resp.Status)
		assert.Contains(t, resp.Msg, "User authorized.")

		env.send(t, core.JobExport, action.VerbStart)
		var last action.Response
		require.Eventually(t, func() bool {
			last = env.send(t, core.JobExport, action.VerbAsk)
			return last.Status == "done"
		}, 2*time.Second, 10*time.Millisecond)
		assert.Contains(t, last.TitleTmpl, "shikimori_one title 1")
	})

	t.Run("Should accept the module under the action field", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 1)
		form := url.Values{"action": {"parser"}, "cookies": {"username=alice"}}

		res := postForm(t, env.server, "/settingup", form, "watchdeck_session=s1")

		assert.Equal(t, http.StatusOK, res.Code)
		assert.Contains(t, res.Body.String(), `"status":"done"`)
		sess, err := env.store.LoadSession(t.Context(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "alice", sess.Users[core.ModuleParser].Username)
		assert.Equal(t, "animebuff_ru", sess.Users[core.ModuleParser].SelectedModule)
	})

	t.Run("Should fail an unknown module", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 1)
		resp, err := env.client.Setup(t.Context(), action.SetupRequest{Module: "importer"})
		require.NoError(t, err)
		assert.Equal(t, "fail", resp.Status)
	})
}

func TestServer_Beacon(t *testing.T) {
	t.Run("Should store the last selection", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 1)
		form := url.Values{
			"selected_pill_id":      {"pills-exporter-tab"},
			"selected_parsed_tab":   {"watch"},
			"selected_exported_tab": {"favorites"},
		}

		res := postForm(t, env.server, "/data_rcv", form, "watchdeck_session=s2")

		assert.Equal(t, http.StatusOK, res.Code)
		sess, err := env.store.LoadSession(t.Context(), "s2")
		require.NoError(t, err)
		assert.Equal(t, Selection{
			PillID:      "pills-exporter-tab",
			ParsedTab:   "watch",
			ExportedTab: "favorites",
		}, sess.Selection)
	})

	t.Run("Should accept a beacon from the client", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 1)
		err := env.client.Beacon(t.Context(), action.Selection{PillID: "pills-parser-tab"})
		assert.NoError(t, err)
	})
}

func TestServer_Metrics(t *testing.T) {
	t.Run("Should expose command counters", func(t *testing.T) {
		env := newTestEnv(t, time.Hour, 1)
		env.send(t, core.JobParse, action.VerbAsk)

		res, err := http.Get(env.url + "/metrics")
		require.NoError(t, err)
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)

		assert.Contains(t, string(body), `watchdeck_jobserver_commands_total{cmd="ask",job="parse",status="fail"} 1`)
	})
}

func TestServer_WithController(t *testing.T) {
	t.Run("Should drive a controller run to a resolved outcome", func(t *testing.T) {
		env := newTestEnv(t, 40*time.Millisecond, 4)
		desc, err := core.NewDescriptor(core.JobParse, 15*time.Millisecond)
		require.NoError(t, err)
		state := tabctx.NewState(tabctx.PillParser)
		state.SelectDropdownItem(desc.MenuID, "watch 0")
		ctrl := job.NewController(desc, env.client, tabctx.NewResolver(state, desc))

		_, err = ctrl.Start(t.Context())
		require.NoError(t, err)
		select {
		case <-ctrl.Notifier().Done():
		case <-time.After(2 * time.Second):
			t.Fatal("run did not settle")
		}

		o, ok := ctrl.Notifier().Result()
		require.True(t, ok)
		assert.Equal(t, notify.KindResolved, o.Kind())
		assert.Contains(t, o.Response().TitleTmpl, "animebuff_ru title 1")
		assert.Equal(t, job.StateIdle, ctrl.State())
	})
}

func postForm(t *testing.T, srv *Server, path string, form url.Values, cookie string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", cookie)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}
