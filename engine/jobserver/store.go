package jobserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrTaskNotFound = errors.New("task not found")

// Store persists sessions and tasks. LoadSession returns a fresh session
// when none is stored under id.
type Store interface {
	LoadSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s *Session) error
	LoadTask(ctx context.Context, id string) (*Task, error)
	SaveTask(ctx context.Context, t *Task) error
	Close() error
}

type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreRedis  StoreType = "redis"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Type      StoreType
	RedisAddr string
	Prefix    string
}

// NewStore builds the configured backend. The redis backend is pinged
// before it is returned.
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tasks    map[string]*Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		tasks:    make(map[string]*Task),
	}
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return NewSession(id), nil
	}
	return s.Clone(), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("session must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) LoadTask(_ context.Context, id string) (*Task, error) {
	m.mu.RLock()
	t, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) SaveTask(_ context.Context, t *Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t.Clone()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
