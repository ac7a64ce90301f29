package auth

import (
	"context"
	"errors"
	"time"

	domainuser "bchat/internal/domain/user"
)

var ErrSessionNotFound = errors.New("auth: session not found")

// Session is an opaque bearer token bound to an account.
type Session struct {
	Token     string
	UserID    domainuser.ID
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	ByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
