package tabctx

import "sync"

// State is an in-memory Source that the terminal dashboard mutates and the
// job controllers read from their own goroutines.
type State struct {
	mu       sync.RWMutex
	pill     string
	items    map[string]string
	expanded map[string]bool
}

func NewState(pill string) *State {
	return &State{
		pill:     pill,
		items:    make(map[string]string),
		expanded: make(map[string]bool),
	}
}

func (s *State) ActivePill() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pill
}

func (s *State) ActiveDropdownItem(menuID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[menuID]
}

func (s *State) PanelExpanded(panelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expanded[panelID]
}

func (s *State) SetActivePill(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pill = id
}

func (s *State) SelectDropdownItem(menuID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[menuID] = text
}

func (s *State) SetPanelExpanded(panelID string, expanded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[panelID] = expanded
}

// TogglePanel flips the panel and returns its new state.
func (s *State) TogglePanel(panelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanded[panelID] = !s.expanded[panelID]
	return s.expanded[panelID]
}
