package config

import (
	"context"
	"sync"

	"github.com/watchdeck/watchdeck/pkg/logger"
)

type ContextKey string

const ManagerCtxKey ContextKey = "config_manager"

func ContextWithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ManagerCtxKey, m)
}

// fallback serves code paths that run without the CLI setup, such as tests
// and library use: built-in defaults plus WATCHDECK_* variables.
var fallback = sync.OnceValue(func() *Manager {
	m := NewManager(NewService())
	if _, err := m.Load(context.Background(), NewEnvProvider()); err != nil {
		logger.Default().Warn("invalid environment configuration, using built-in defaults", "error", err)
		m.current.Store(Default())
	}
	return m
})

// ManagerFromContext returns the manager stored in ctx, or the process-wide
// fallback manager.
func ManagerFromContext(ctx context.Context) *Manager {
	if ctx != nil {
		if m, ok := ctx.Value(ManagerCtxKey).(*Manager); ok && m != nil {
			return m
		}
	}
	return fallback()
}

// FromContext returns the active configuration for ctx.
func FromContext(ctx context.Context) *Config {
	return ManagerFromContext(ctx).Get()
}
