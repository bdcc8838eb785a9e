package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/watchdeck/watchdeck/pkg/logger"
)

// Manager owns the live *Config. Readers call Get on every decision so a
// reloaded file takes effect without restarting running jobs.
type Manager struct {
	Service Service

	current atomic.Pointer[Config]

	reloadMu sync.Mutex
	sources  []Source
	cancel   context.CancelFunc

	listenersMu sync.RWMutex
	listeners   []func(*Config)

	closeOnce sync.Once
}

func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service}
}

// Load loads the configuration and starts watching the sources that support
// it. Watching outlives ctx cancellation and ends with Close.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	m.reloadMu.Lock()
	m.sources = append([]Source(nil), sources...)
	if m.cancel != nil {
		m.cancel()
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.reloadMu.Unlock()

	m.publish(cfg)
	m.watch(wctx, sources)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Reload loads every source again. The current configuration is kept when
// the new one is invalid.
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()
	cfg, err := m.Service.Load(ctx, m.sources...)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	m.publish(cfg)
	return nil
}

// OnChange registers fn to run after every load that changes the
// configuration.
func (m *Manager) OnChange(fn func(*Config)) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Close stops watching and closes the sources.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	m.closeOnce.Do(func() {
		m.reloadMu.Lock()
		if m.cancel != nil {
			m.cancel()
		}
		sources := m.sources
		m.reloadMu.Unlock()
		for _, src := range sources {
			if src == nil {
				continue
			}
			if err := src.Close(); err != nil {
				logger.FromContext(ctx).Error("failed to close configuration source", "source", src.Type(), "error", err)
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

func (m *Manager) watch(ctx context.Context, sources []Source) {
	log := logger.FromContext(ctx)
	for _, src := range sources {
		if src == nil {
			continue
		}
		err := src.Watch(ctx, func() {
			if err := m.Reload(ctx); err != nil {
				log.Error("failed to reload configuration", "error", err)
				return
			}
			log.Info("configuration reloaded", "source", src.Type())
		})
		if err != nil {
			log.Debug("configuration source not watched", "source", src.Type(), "error", err)
		}
	}
}

func (m *Manager) publish(cfg *Config) {
	old := m.current.Swap(cfg)
	if old != nil && reflect.DeepEqual(old, cfg) {
		return
	}
	m.listenersMu.RLock()
	listeners := append(([]func(*Config))(nil), m.listeners...)
	m.listenersMu.RUnlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(cfg)
		}
	}
}
