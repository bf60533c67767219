package estimator

import (
	"sync"
	"time"

	"github.com/User65k/baos/internal/blind"
)

// Store is the concurrency-safe, consulted-from-two-places (the
// reducer driver and planner/snapshot readers) wrapper around the
// reducer's state map.
type Store struct {
	mu     sync.RWMutex
	states map[blind.Blind]Entry
}

// NewStore returns an empty store: no blind has a known position
// until the first relevant bus event arrives.
func NewStore() *Store {
	return &Store{states: make(map[blind.Blind]Entry)}
}

// Get returns the entry for b, if any.
func (s *Store) Get(b blind.Blind) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.states[b]
	return e, ok
}

// Snapshot returns a copy of every known entry.
func (s *Store) Snapshot() map[blind.Blind]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneStates(s.states)
}

// Apply feeds ev through Reduce and commits the result, returning the
// blinds whose entries changed.
func (s *Store) Apply(ev Event, timing Timing) []blind.Blind {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, affected := Reduce(s.states, ev, timing)
	s.states = next
	return affected
}

// SweepNow runs the periodic endpoint-promotion sweep and commits the
// result, returning the blinds whose entries changed.
func (s *Store) SweepNow(timing Timing) []blind.Blind {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, affected := Sweep(s.states, time.Now(), timing)
	s.states = next
	return affected
}
