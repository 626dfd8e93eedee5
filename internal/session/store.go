package session

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Store maps conversation ids to their state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*State)}
}

// Create registers a fresh state under a new random id.
func (s *Store) Create() (string, *State) {
	id := uuid.New().String()
	st := New()
	s.Put(id, st)
	return id, st
}

// Put registers st under id, replacing any previous state.
func (s *Store) Put(id string, st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = st
}

// Get returns the state for id.
func (s *Store) Get(id string) (*State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	return st, ok
}

// GetOrCreate returns the state for id, creating an empty one if needed.
func (s *Store) GetOrCreate(id string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		st = New()
		s.sessions[id] = st
	}
	return st
}

// Delete drops the state for id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// IDs returns the registered ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
