package storage

import (
	"sync"
	"time"
)

// CooldownStore remembers when each alert key was last notified.
// Entries live for the lifetime of the process and are never removed.
type CooldownStore struct {
	mu   sync.RWMutex // Protects the map from concurrent cycles
	last map[string]time.Time
}

func NewCooldownStore() *CooldownStore {
	return &CooldownStore{
		last: make(map[string]time.Time),
	}
}

// LastNotified returns the last recorded notification time for key
func (s *CooldownStore) LastNotified(key string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.last[key]
	return t, ok
}

// Record stores at as the latest notification time for key
func (s *CooldownStore) Record(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[key] = at
}

// InCooldown reports whether last+delay is still after at
func (s *CooldownStore) InCooldown(key string, at time.Time, delay time.Duration) bool {
	last, ok := s.LastNotified(key)
	if !ok {
		return false
	}
	return last.Add(delay).After(at)
}

// Len returns the number of tracked keys
func (s *CooldownStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.last)
}
