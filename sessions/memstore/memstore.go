// Package memstore is an in-process sessions.Store, suitable for the
// subprocess-pipe transport and single-instance HTTP deployments where no
// cross-process sharing is needed.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/relaymcp/relay/sessions"
)

type entry struct {
	expiresAt time.Time
}

// Store is a mutex-guarded map-based sessions.Store.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

var _ sessions.Store = (*Store)(nil)

// New builds an empty Store.
func New() *Store {
	return &Store{entries: map[string]entry{}}
}

func (s *Store) IsInitialized(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, sessionID)
		return false, nil
	}
	return true, nil
}

func (s *Store) MarkInitialized(_ context.Context, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = entry{expiresAt: time.Now().Add(ttl)}
	return nil
}
