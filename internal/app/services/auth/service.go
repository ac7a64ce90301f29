// Package auth is the account bootstrap surface: registration mints the user
// document (friend code, presence, defaults) on first authentication, login
// and logout flip the presence flag alongside session handling.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bchat/internal/app/errbus"
	"bchat/internal/app/presence"
	"bchat/internal/app/uow"
	domainauth "bchat/internal/domain/auth"
	"bchat/internal/domain/identity"
	domainuser "bchat/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type TokenGenerator interface {
	NewToken() (string, error)
}

type Service struct {
	UoW        uow.Factory
	Sessions   domainauth.SessionStore
	Passwords  PasswordHasher
	Tokens     TokenGenerator
	Presence   *presence.Tracker
	Errors     *errbus.Bus
	SessionTTL time.Duration
	Logger     *slog.Logger
}

type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User  *domainuser.User
	Token string
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if len(params.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	code, err := identity.NewFriendCode()
	if err != nil {
		return nil, err
	}
	account, err := domainuser.New(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        params.Email,
		DisplayName:  params.DisplayName,
		PasswordHash: hash,
		FriendCode:   code,
		Now:          time.Now(),
	})
	if err != nil {
		return nil, err
	}

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	txCtx := unit.InjectContext(ctx)
	if err := unit.Users().Save(txCtx, account); err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	if err := unit.Commit(txCtx); err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}

	token, err := s.issueSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("account registered", "user_id", string(account.ID))
	}
	return &AuthResult{User: account, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	account, err := unit.Users().ByEmail(unit.InjectContext(ctx), strings.TrimSpace(params.Email))
	unit.Rollback(ctx)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errbus.Intercept(s.Errors, err)
	}
	if err := s.Passwords.Compare(account.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := s.issueSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if s.Presence != nil {
		if err := s.Presence.MarkOnline(ctx, account.ID); err != nil && s.Logger != nil {
			s.Logger.Warn("presence update failed on login", "user_id", string(account.ID), "error", err)
		}
	}
	return &AuthResult{User: account, Token: token}, nil
}

// Logout drops the session and flips presence to offline. This explicit
// sign-out is the only transition to offline in the system.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.Sessions.ByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if err := s.Sessions.Delete(ctx, token); err != nil {
		return err
	}
	if s.Presence != nil {
		return s.Presence.MarkOffline(ctx, session.UserID)
	}
	return nil
}

// ResolveToken maps a bearer token to the account it belongs to.
func (s *Service) ResolveToken(ctx context.Context, token string) (*domainuser.User, error) {
	session, err := s.Sessions.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.Sessions.Delete(ctx, token)
		return nil, domainauth.ErrSessionNotFound
	}
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	return unit.Users().ByID(unit.InjectContext(ctx), session.UserID)
}

func (s *Service) issueSession(ctx context.Context, id domainuser.ID) (string, error) {
	token, err := s.Tokens.NewToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	session := &domainauth.Session{
		Token:     token,
		UserID:    id,
		CreatedAt: now,
	}
	if s.SessionTTL > 0 {
		session.ExpiresAt = now.Add(s.SessionTTL)
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}
