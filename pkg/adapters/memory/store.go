package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Store keeps session snapshots in a map. It is the default store of the CLI
// and the reference the other stores are tested against.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*domain.Session)}
}

// Save stores a snapshot, so later changes to session are not visible here.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	snap := session.Snapshot()

	s.mu.Lock()
	s.sessions[session.ID] = snap
	s.mu.Unlock()
	return nil
}

// Load returns a fresh snapshot or domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	snap, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return snap.Snapshot(), nil
}

// Delete forgets the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// List returns the stored session IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids, nil
}
