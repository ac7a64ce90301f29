package memory

import (
	"context"
	"errors"

	"bchat/internal/app/errbus"
	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

// ErrFactoryMisconfigured indicates a missing backing store.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires the in-memory store into the generic unit-of-work port.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{store: f.Store, readOnly: opts.ReadOnly}, nil
}

var _ uow.Factory = Factory{}

// Unit stages mutations and applies them all-or-nothing on Commit under the
// store lock. A failing op restores the pre-commit state, so a half-applied
// friend edge or a message without its summary update is never observable.
type Unit struct {
	store    *Store
	ops      []op
	readOnly bool
}

func (u *Unit) stage(o op) error {
	u.ops = append(u.ops, o)
	return nil
}

func (u *Unit) Users() domainuser.Repository {
	return &UserRepository{store: u.store, unit: u}
}

func (u *Unit) Conversations() domainchat.ConversationRepository {
	return &ConversationRepository{store: u.store, unit: u}
}

func (u *Unit) Messages() domainchat.MessageRepository {
	return &MessageRepository{store: u.store, unit: u}
}

func (u *Unit) Requests() domainfriends.RequestRepository {
	return &RequestRepository{store: u.store, unit: u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return &OutboxStore{store: u.store, unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if len(u.ops) == 0 {
		return nil
	}
	ops := u.ops
	u.ops = nil

	s := u.store
	s.mu.Lock()
	snapshot := s.st.clone()
	touched := make(map[string]struct{}, len(ops))
	for _, o := range ops {
		if s.deny != nil && s.deny(o.path, o.operation) {
			s.st = snapshot
			s.mu.Unlock()
			return &errbus.PermissionError{Path: o.path, Operation: o.operation, Payload: o.payload}
		}
		if err := o.apply(&s.st); err != nil {
			s.st = snapshot
			s.mu.Unlock()
			return err
		}
		touched[o.collection] = struct{}{}
	}
	s.mu.Unlock()
	s.notify(touched)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.ops = nil
	return nil
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return ctx
}
