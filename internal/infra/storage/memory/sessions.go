package memory

import (
	"context"
	"strings"
	"sync"

	domainauth "bchat/internal/domain/auth"
)

// SessionStore keeps bearer sessions in memory. Sessions are process-local
// and deliberately outside the record-store transaction scope.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[string]*domainauth.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{byToken: make(map[string]*domainauth.Session)}
}

var _ domainauth.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) Save(ctx context.Context, session *domainauth.Session) error {
	if session == nil || strings.TrimSpace(session.Token) == "" {
		return domainauth.ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	s.byToken[session.Token] = &stored
	return nil
}

func (s *SessionStore) ByToken(ctx context.Context, token string) (*domainauth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byToken[token]
	if !ok {
		return nil, domainauth.ErrSessionNotFound
	}
	out := *session
	return &out, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
	return nil
}
