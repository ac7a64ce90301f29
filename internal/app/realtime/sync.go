// Package realtime bridges push-based record-store subscriptions into
// reconciled application views. Every emission carries the complete current
// result set, never a delta: consumers replace their whole view model, so
// the view after any emission equals the store's state at that emission.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

// Logical collection names, shared by the store watchers.
const (
	CollectionUsers         = "users"
	CollectionConversations = "conversations"
	CollectionMessages      = "messages"
	CollectionRequests      = "friendRequests"
)

// Notifier signals that a collection changed. The channel is coalescing: a
// pending signal absorbs later ones, the subscriber re-reads full state anyway.
type Notifier interface {
	Watch(collection string) (<-chan struct{}, func())
}

// Unsubscribe stops further delivery. Idempotent; call exactly once per
// subscription at consumer teardown.
type Unsubscribe func()

// ConversationView is a conversation hydrated with fresh participant
// snapshots. The denormalized details on the record itself can be stale; the
// view re-reads the user documents so list rendering sees current presence.
type ConversationView struct {
	Conversation *domainchat.Conversation
	Details      map[domainuser.ID]domainuser.Snapshot
}

// Syncer owns the subscription plumbing over one record store.
type Syncer struct {
	UoW    uow.Factory
	Notify Notifier
	Logger *slog.Logger
}

// SubscribeConversations delivers the user's full conversation list on every
// relevant change. Participant hydration happens before publishing; a
// snapshot is either complete or not emitted at all.
func (s *Syncer) SubscribeConversations(ctx context.Context, id domainuser.ID, onSnapshot func([]ConversationView), onError func(error)) Unsubscribe {
	convCh, cancelConv := s.Notify.Watch(CollectionConversations)
	userCh, cancelUsers := s.Notify.Watch(CollectionUsers)
	done := make(chan struct{})

	go func() {
		emit := func() {
			views, err := s.SnapshotConversations(ctx, id)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(views)
		}
		emit()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-convCh:
				emit()
			case <-userCh:
				emit()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelConv()
			cancelUsers()
			close(done)
		})
	}
}

// SubscribeMessages delivers the full ordered log of a conversation on every
// mutation; this is the lazy, restartable message stream.
func (s *Syncer) SubscribeMessages(ctx context.Context, id domainchat.ConversationID, onSnapshot func([]*domainchat.Message), onError func(error)) Unsubscribe {
	msgCh, cancel := s.Notify.Watch(CollectionMessages)
	done := make(chan struct{})

	go func() {
		emit := func() {
			msgs, err := s.SnapshotMessages(ctx, id)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(msgs)
		}
		emit()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-msgCh:
				emit()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}
}

// SnapshotConversations reads the current conversation list and hydrates
// participant details through one batched lookup.
func (s *Syncer) SnapshotConversations(ctx context.Context, id domainuser.ID) ([]ConversationView, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	conversations, err := unit.Conversations().ListForUser(ctx, id)
	if err != nil {
		return nil, err
	}

	seen := make(map[domainuser.ID]struct{})
	var ids []domainuser.ID
	for _, c := range conversations {
		for _, p := range c.Participants {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				ids = append(ids, p)
			}
		}
	}
	participants := make(map[domainuser.ID]domainuser.Snapshot, len(ids))
	if len(ids) > 0 {
		users, err := unit.Users().ByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			participants[u.ID] = u.Snapshot()
		}
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, c := range conversations {
		details := make(map[domainuser.ID]domainuser.Snapshot, len(c.Participants))
		for _, p := range c.Participants {
			if snap, ok := participants[p]; ok {
				details[p] = snap
			} else if snap, ok := c.ParticipantDetails[p]; ok {
				// Account document missing; fall back to the stored snapshot.
				details[p] = snap
			}
		}
		views = append(views, ConversationView{Conversation: c, Details: details})
	}
	return views, nil
}

// SnapshotMessages reads the current full log, timestamp ascending.
func (s *Syncer) SnapshotMessages(ctx context.Context, id domainchat.ConversationID) ([]*domainchat.Message, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)
	return unit.Messages().ListByConversation(ctx, id)
}
