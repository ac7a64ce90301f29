// Package users exposes account lookups outside the authentication flow:
// directory search and profile edits.
package users

import (
	"context"
	"log/slog"
	"strings"

	"bchat/internal/app/errbus"
	"bchat/internal/app/uow"
	domainuser "bchat/internal/domain/user"
)

type Service struct {
	UoW    uow.Factory
	Errors *errbus.Bus
	Logger *slog.Logger
}

// Get returns the account document by id.
func (s *Service) Get(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = unit.InjectContext(ctx)
	defer unit.Rollback(ctx)
	u, err := unit.Users().ByID(ctx, id)
	if err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	return u, nil
}

// Search matches accounts by display-name prefix or exact friend code,
// excluding the caller.
func (s *Service) Search(ctx context.Context, caller domainuser.ID, query string, limit int) ([]*domainuser.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domainuser.User{}, nil
	}
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = unit.InjectContext(ctx)
	defer unit.Rollback(ctx)
	found, err := unit.Users().Search(ctx, domainuser.SearchParams{
		Query:   query,
		Exclude: caller,
		Limit:   limit,
	})
	if err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	return found, nil
}

// UpdateProfile overwrites the provided fields and returns the fresh document.
func (s *Service) UpdateProfile(ctx context.Context, id domainuser.ID, update domainuser.ProfileUpdate) (*domainuser.User, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	txCtx := unit.InjectContext(ctx)
	if err := unit.Users().UpdateProfile(txCtx, id, update); err != nil {
		unit.Rollback(txCtx)
		return nil, errbus.Intercept(s.Errors, err)
	}
	if err := unit.Commit(txCtx); err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	return s.Get(ctx, id)
}
