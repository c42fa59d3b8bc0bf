package runtime

import (
	"sync"
	"time"

	"github.com/vanthaita/piratesocial-chat/domain"
)

// SessionStore maps an active connection id to its authenticated identity.
// A connection without a session here may not send, join, or leave.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

// Bind attaches the verified identity to the connection and returns the
// session-context value passed to every subsequent handler invocation.
func (s *SessionStore) Bind(connID string, identity domain.Identity) *domain.Session {
	session := &domain.Session{
		ConnID:      connID,
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[connID] = session
	return session
}

func (s *SessionStore) Get(connID string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[connID]
	return session, ok
}

func (s *SessionStore) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, connID)
}

func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
