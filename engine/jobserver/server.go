package jobserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/watchdeck/watchdeck/engine/action"
	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/logger"
	"github.com/watchdeck/watchdeck/pkg/version"
)

const (
	sessionCookie         = "watchdeck_session"
	sessionKey            = "session_id"
	serverShutdownTimeout = 5 * time.Second
)

// Config configures the reference job service.
type Config struct {
	Addr         string
	TaskDuration time.Duration
	TaskSteps    int
	// Modules holds the default site module of each settings module.
	Modules map[core.ModuleName]string
}

// Server is a development stand-in for the remote job service. It answers
// /action, /settingup and /data_rcv the way the production service does,
// backed by simulated tasks.
type Server struct {
	cfg     Config
	store   Store
	runner  *Runner
	render  *Renderer
	metrics *Metrics
	router  *gin.Engine
	sessMu  sync.Mutex
}

func New(ctx context.Context, cfg Config, store Store) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	render, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.Modules == nil {
		cfg.Modules = map[core.ModuleName]string{}
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		render:  render,
		metrics: NewMetrics(),
	}
	s.runner = NewRunner(ctx, store, cfg.TaskDuration, cfg.TaskSteps,
		WithStateHook(s.metrics.TaskFinished))
	s.router = s.buildRouter(logger.FromContext(ctx))
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(log), sessionMiddleware())
	r.POST("/action", s.handleAction)
	r.POST("/settingup", s.handleSetup)
	r.POST("/data_rcv", s.handleBeacon)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get().Version})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return r
}

// Run serves until ctx is canceled, then shuts the listener and the runner
// down.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting job service", "address", fmt.Sprintf("http://%s", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("job service failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.Close(shutdownCtx); err != nil {
		return err
	}
	log.Info("Job service shutdown completed")
	return nil
}

// Close revokes running tasks and waits for them to settle.
func (s *Server) Close(ctx context.Context) error {
	return s.runner.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) handleAction(c *gin.Context) {
	ctx := c.Request.Context()
	jobField := c.PostForm("action")
	cmdField := c.PostForm("cmd")
	job, err := core.ParseJobName(jobField)
	if err != nil {
		s.reply(c, jobField, cmdField, s.mustFail(LevelFail, msgUnknownCommand))
		return
	}
	cmd := command{job: job, verb: action.Verb(cmdField)}
	cmd.selectedTab, cmd.expanded = parseOptionalArgs(c.PostForm("optional_args"))

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, err := s.store.LoadSession(ctx, sessionID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	res, err := s.runCommand(ctx, sess, cmd)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if res.dirty {
		sess.UpdatedAt = time.Now()
		if err := s.store.SaveSession(ctx, sess); err != nil {
			s.internalError(c, err)
			return
		}
	}
	s.reply(c, job.String(), cmdField, res.resp)
}

func (s *Server) handleSetup(c *gin.Context) {
	ctx := c.Request.Context()
	field := c.PostForm("module")
	if field == "" {
		field = c.PostForm("action")
	}
	module, err := core.ParseModuleName(field)
	if err != nil {
		s.reply(c, field, "settingup", s.mustFail(LevelFail, msgUnknownModule))
		return
	}
	selected := strings.TrimSpace(c.PostForm("selected_module"))
	if selected == "" {
		selected = s.cfg.Modules[module]
	}
	cookies := c.PostForm("cookies")

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, err := s.store.LoadSession(ctx, sessionID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	sess.Users[module] = User{
		SelectedModule: selected,
		Username:       usernameFromCookies(cookies, selected),
		Cookies:        cookies,
	}
	sess.UpdatedAt = time.Now()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		s.internalError(c, err)
		return
	}
	msg, err := s.render.Alert(LevelDone, msgAuthorized)
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.reply(c, module.String(), "settingup", action.Response{Status: action.StatusDone, Msg: msg})
}

func (s *Server) handleBeacon(c *gin.Context) {
	ctx := c.Request.Context()
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sess, err := s.store.LoadSession(ctx, sessionID(c))
	if err != nil {
		s.internalError(c, err)
		return
	}
	sess.Selection = Selection{
		PillID:      c.PostForm("selected_pill_id"),
		ParsedTab:   c.PostForm("selected_parsed_tab"),
		ExportedTab: c.PostForm("selected_exported_tab"),
	}
	sess.UpdatedAt = time.Now()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": action.StatusDone})
}

func (s *Server) reply(c *gin.Context, job, cmd string, resp action.Response) {
	s.metrics.ObserveCommand(job, cmd, resp.Status)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) internalError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// mustFail renders a fail answer, degrading to a bare fail status when the
// alert template cannot be rendered.
func (s *Server) mustFail(level, message string) action.Response {
	res, err := s.failWith(level, message)
	if err != nil {
		return action.FailResponse()
	}
	return res.resp
}

// parseOptionalArgs reads {"selected_tab": string|null, "progress_xpnd": bool}.
// A missing or malformed value yields no sub-tab and a collapsed panel.
func parseOptionalArgs(raw string) (*string, bool) {
	if raw == "" || !gjson.Valid(raw) {
		return nil, false
	}
	parsed := gjson.Parse(raw)
	var tab *string
	if t := parsed.Get("selected_tab"); t.Type == gjson.String && t.String() != "" {
		v := t.String()
		tab = &v
	}
	return tab, parsed.Get("progress_xpnd").Bool()
}

// usernameFromCookies takes the username cookie when present, otherwise a
// name derived from the site module.
func usernameFromCookies(raw, module string) string {
	if cookies, err := http.ParseCookie(raw); err == nil {
		for _, ck := range cookies {
			if ck.Name == "username" && ck.Value != "" {
				return ck.Value
			}
		}
	}
	if module == "" {
		return ""
	}
	return module + "_user"
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// loggerMiddleware logs HTTP request details.
func loggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.ContextWithLogger(c.Request.Context(), log)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		log.Debug("Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
