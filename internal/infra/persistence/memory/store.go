// Package memory provides an in-memory implementation of the player homes
// persistence contract used for tests and ephemeral environments.
package memory

import (
	"context"
	"sync"

	"homewarp/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store keeps snapshots in a map. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	snapshots map[domain.PlayerID]domain.PlayerHomesSnapshot
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{snapshots: make(map[domain.PlayerID]domain.PlayerHomesSnapshot)}
}

// Init is a no-op.
func (s *Store) Init(context.Context) error { return nil }

// Shutdown is a no-op.
func (s *Store) Shutdown(context.Context) error { return nil }

// Load returns the stored snapshot for id.
func (s *Store) Load(_ context.Context, id domain.PlayerID) (domain.PlayerHomesSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[id]
	return snapshot, ok, nil
}

// Save upserts the snapshot.
func (s *Store) Save(_ context.Context, snapshot domain.PlayerHomesSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.PlayerID] = snapshot
	return nil
}

// Delete removes the snapshot for id, absent rows included.
func (s *Store) Delete(_ context.Context, id domain.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
	return nil
}

// Len reports how many snapshots are stored. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
