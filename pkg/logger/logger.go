package logger

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logger passed through contexts.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
	// SetLevel changes the level of the logger and of every logger derived
	// from it through With.
	SetLevel(level Level)
}

type Level string

const (
	DebugLevel    Level = "debug"
	InfoLevel     Level = "info"
	WarnLevel     Level = "warn"
	ErrorLevel    Level = "error"
	DisabledLevel Level = "disabled"
)

// charm has no "off" level; anything above FatalLevel filters every record.
const charmDisabled charmlog.Level = 1000

// ParseLevel maps a flag or config value onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch lvl := Level(strings.ToLower(strings.TrimSpace(s))); lvl {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, DisabledLevel:
		return lvl
	default:
		return InfoLevel
	}
}

func (l Level) charm() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmDisabled
	default:
		return charmlog.InfoLevel
	}
}

// Options configures a logger. Records go to stderr unless Output is set,
// which keeps stdout free for command output.
type Options struct {
	Level  Level
	Output io.Writer
	JSON   bool
	Source bool
}

type charmLogger struct {
	l     *charmlog.Logger
	level *atomic.Int32
}

func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportCaller:    opts.Source,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		// filtering happens in log so the level stays shared with derived loggers
		Level: charmlog.DebugLevel,
	})
	if opts.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetStyles(styles())
	}
	c := &charmLogger{l: l, level: &atomic.Int32{}}
	c.SetLevel(opts.Level)
	return c
}

func (c *charmLogger) log(level charmlog.Level, msg string, keyvals ...any) {
	if int32(level) < c.level.Load() {
		return
	}
	c.l.Log(level, msg, keyvals...)
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.log(charmlog.DebugLevel, msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.log(charmlog.InfoLevel, msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.log(charmlog.WarnLevel, msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.log(charmlog.ErrorLevel, msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...), level: c.level}
}

func (c *charmLogger) SetLevel(level Level) {
	c.level.Store(int32(level.charm()))
}

var defaultLogger atomic.Pointer[Logger]

// SetDefault replaces the process logger returned by Default.
func SetDefault(l Logger) {
	defaultLogger.Store(&l)
}

// Default returns the process logger. Under go test it discards everything
// until SetDefault is called.
func Default() Logger {
	if l := defaultLogger.Load(); l != nil {
		return *l
	}
	opts := Options{Level: InfoLevel}
	if isTest() {
		opts = Options{Level: DisabledLevel, Output: io.Discard}
	}
	l := New(opts)
	if defaultLogger.CompareAndSwap(nil, &l) {
		return l
	}
	return *defaultLogger.Load()
}

func isTest() bool {
	return flag.Lookup("test.v") != nil || strings.HasSuffix(os.Args[0], ".test")
}

type ctxKey struct{}

func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or Default.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}
