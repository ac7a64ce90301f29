// Package chat holds the conversation directory and the message log, the two
// write paths of the messaging core.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bchat/internal/app/errbus"
	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	"bchat/internal/domain/identity"
	domainuser "bchat/internal/domain/user"
)

// Directory resolves-or-creates conversations for user pairs. Creation is
// idempotent under concurrency: both initiators derive the same key, the
// loser's insert collides and collapses into a read of the winner's record.
type Directory struct {
	UoW     uow.Factory
	Errors  *errbus.Bus
	Encoder appoutbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (d *Directory) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// GetOrCreate returns the conversation for the pair, creating it on first
// message-intent. Self-conversations are rejected before any store traffic.
func (d *Directory) GetOrCreate(ctx context.Context, initiator, target domainuser.ID) (*domainchat.Conversation, error) {
	key, err := identity.ConversationKey(string(initiator), string(target))
	if err != nil {
		return nil, err
	}
	id := domainchat.ConversationID(key)

	existing, err := d.lookup(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainchat.ErrConversationNotFound) {
		return nil, errbus.Intercept(d.Errors, err)
	}

	conversation, err := d.create(ctx, id, initiator, target)
	if err == nil {
		return conversation, nil
	}
	if errors.Is(err, domainchat.ErrConversationExists) {
		// Lost the race; the winner's write is the record for this pair.
		winner, readErr := d.lookup(ctx, id)
		if readErr != nil {
			return nil, errbus.Intercept(d.Errors, readErr)
		}
		return winner, nil
	}
	return nil, errbus.Intercept(d.Errors, err)
}

// Get returns an existing conversation without creating one.
func (d *Directory) Get(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	conversation, err := d.lookup(ctx, id)
	if err != nil {
		return nil, errbus.Intercept(d.Errors, err)
	}
	return conversation, nil
}

func (d *Directory) lookup(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	unit, err := d.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	return unit.Conversations().ByID(unit.InjectContext(ctx), id)
}

func (d *Directory) create(ctx context.Context, id domainchat.ConversationID, initiator, target domainuser.ID) (*domainchat.Conversation, error) {
	unit, err := d.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	users, err := unit.Users().ByIDs(ctx, []domainuser.ID{initiator, target})
	if err != nil {
		return nil, err
	}
	details := make(map[domainuser.ID]domainuser.Snapshot, 2)
	for _, u := range users {
		details[u.ID] = u.Snapshot()
	}
	if _, ok := details[initiator]; !ok {
		return nil, domainuser.ErrNotFound
	}
	if _, ok := details[target]; !ok {
		return nil, domainuser.ErrNotFound
	}

	lo, hi := identity.SortPair(string(initiator), string(target))
	conversation := &domainchat.Conversation{
		ID:                 id,
		Participants:       []domainuser.ID{domainuser.ID(lo), domainuser.ID(hi)},
		ParticipantDetails: details,
		CreatedAt:          d.now(),
	}
	if err := unit.Conversations().Create(ctx, conversation); err != nil {
		return nil, err
	}
	if err := appoutbox.Record(ctx, unit.Outbox(), d.Encoder, domainchat.NewConversationCreated(conversation, conversation.CreatedAt)); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	if d.Logger != nil {
		d.Logger.Info("conversation created", "conversation_id", string(id))
	}
	return conversation, nil
}
