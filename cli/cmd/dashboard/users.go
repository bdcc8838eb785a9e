package dashboard

import (
	"sync"

	"github.com/watchdeck/watchdeck/engine/core"
	"github.com/watchdeck/watchdeck/pkg/config"
)

// Users holds the authorized user of each settings module. It is read by
// the action buttons from their own goroutines.
type Users struct {
	mu    sync.RWMutex
	names map[core.ModuleName]string
}

// NewUsers seeds the users from the configuration.
func NewUsers(cfg *config.Config) *Users {
	u := &Users{names: make(map[core.ModuleName]string)}
	for _, m := range []core.ModuleName{core.ModuleParser, core.ModuleExporter} {
		if name := cfg.Username(m.String()); name != "" {
			u.names[m] = name
		}
	}
	return u
}

func (u *Users) Username(m core.ModuleName) string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.names[m]
}

// Authorize records name as the user of m unless one is already known.
func (u *Users) Authorize(m core.ModuleName, name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.names[m] == "" {
		u.names[m] = name
	}
}
