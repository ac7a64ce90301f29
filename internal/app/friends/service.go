// Package friends manages the friend-request state machine and the symmetric
// friend graph it produces.
package friends

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bchat/internal/app/errbus"
	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/uow"
	domainfriends "bchat/internal/domain/friends"
	"bchat/internal/domain/identity"
	domainuser "bchat/internal/domain/user"
)

type Service struct {
	UoW     uow.Factory
	Errors  *errbus.Bus
	Encoder appoutbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SendRequest creates a pending request for the pair, carrying a denormalized
// snapshot of the sender. A request in any status for the same unordered pair
// makes this a no-op with ErrAlreadyExists, which is how doubled clicks and
// crossing sends from both sides are suppressed.
func (s *Service) SendRequest(ctx context.Context, from, to domainuser.ID) (domainfriends.RequestID, error) {
	key, err := identity.RequestKey(string(from), string(to))
	if err != nil {
		return "", err
	}
	id := domainfriends.RequestID(key)

	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return "", err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	if _, err := unit.Requests().ByID(ctx, id); err == nil {
		return id, domainfriends.ErrAlreadyExists
	} else if !errors.Is(err, domainfriends.ErrRequestNotFound) {
		return "", errbus.Intercept(s.Errors, err)
	}

	sender, err := unit.Users().ByID(ctx, from)
	if err != nil {
		return "", errbus.Intercept(s.Errors, err)
	}
	if _, err := unit.Users().ByID(ctx, to); err != nil {
		return "", errbus.Intercept(s.Errors, err)
	}
	request := &domainfriends.Request{
		ID:           id,
		From:         from,
		To:           to,
		FromName:     sender.DisplayName,
		FromPhotoURL: sender.PhotoURL,
		Status:       domainfriends.StatusPending,
		CreatedAt:    s.now(),
	}
	if err := unit.Requests().Create(ctx, request); err != nil {
		if errors.Is(err, domainfriends.ErrAlreadyExists) {
			return id, domainfriends.ErrAlreadyExists
		}
		return "", errbus.Intercept(s.Errors, err)
	}
	if err := appoutbox.Record(ctx, unit.Outbox(), s.Encoder, domainfriends.NewRequestSent(request)); err != nil {
		return "", err
	}
	if err := unit.Commit(ctx); err != nil {
		if errors.Is(err, domainfriends.ErrAlreadyExists) {
			return id, domainfriends.ErrAlreadyExists
		}
		return "", errbus.Intercept(s.Errors, err)
	}
	if s.Logger != nil {
		s.Logger.Info("friend request sent", "request_id", string(id))
	}
	return id, nil
}

// Respond resolves a pending request. Accepting flips the status and writes
// both friend edges in the same transaction; one edge without its mirror is
// an invalid intermediate state that must never persist. Declining deletes
// the request outright, no tombstone. Accepted is terminal: the retained
// record cannot be responded to again.
func (s *Service) Respond(ctx context.Context, id domainfriends.RequestID, accept bool) error {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	request, err := unit.Requests().ByID(ctx, id)
	if err != nil {
		return errbus.Intercept(s.Errors, err)
	}
	if request.Status != domainfriends.StatusPending {
		return domainfriends.ErrRequestNotFound
	}

	if !accept {
		if err := unit.Requests().Delete(ctx, id); err != nil {
			return errbus.Intercept(s.Errors, err)
		}
		return errbus.Intercept(s.Errors, unit.Commit(ctx))
	}

	request.RespondedAt = s.now()
	if err := unit.Requests().SetStatus(ctx, id, domainfriends.StatusAccepted, request.RespondedAt); err != nil {
		return errbus.Intercept(s.Errors, err)
	}
	if err := unit.Users().AddFriend(ctx, request.From, request.To); err != nil {
		return errbus.Intercept(s.Errors, err)
	}
	if err := unit.Users().AddFriend(ctx, request.To, request.From); err != nil {
		return errbus.Intercept(s.Errors, err)
	}
	if err := appoutbox.Record(ctx, unit.Outbox(), s.Encoder, domainfriends.NewRequestAccepted(request)); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return errbus.Intercept(s.Errors, err)
	}
	if s.Logger != nil {
		s.Logger.Info("friend request accepted", "request_id", string(id))
	}
	return nil
}

// FriendsOf resolves the user's friend id set into display summaries through
// one batched lookup. An empty set returns without a second store round-trip.
func (s *Service) FriendsOf(ctx context.Context, id domainuser.ID) ([]domainfriends.Friend, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	owner, err := unit.Users().ByID(ctx, id)
	if err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	if len(owner.Friends) == 0 {
		return []domainfriends.Friend{}, nil
	}
	users, err := unit.Users().ByIDs(ctx, owner.Friends)
	if err != nil {
		return nil, errbus.Intercept(s.Errors, err)
	}
	out := make([]domainfriends.Friend, 0, len(users))
	for _, u := range users {
		out = append(out, domainfriends.Friend{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
			FriendCode:  u.FriendCode,
			Online:      u.Online,
			LastActive:  u.LastActive,
		})
	}
	return out, nil
}

// Incoming lists pending requests addressed to the user, newest first.
func (s *Service) Incoming(ctx context.Context, id domainuser.ID) ([]*domainfriends.Request, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	requests, err := unit.Requests().ListIncoming(unit.InjectContext(ctx), id)
	return requests, errbus.Intercept(s.Errors, err)
}
