package memory

import (
	"context"
	"sync"

	"github.com/danielsoto/norte-agent/internal/domain"
)

// SessionStore is a simple in-memory implementation of domain.SessionStore.
// It is NOT persistent and is only suitable for development / local mode.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]*domain.Session),
	}
}

func (s *SessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return domain.ErrSessionExists
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) SaveSession(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; !exists {
		return domain.ErrSessionNotFound
	}

	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Hand out a clone so callers never alias the stored copy.
	return sess.Clone(), nil
}
