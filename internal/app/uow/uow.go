package uow

import (
	"context"
	"errors"

	appoutbox "bchat/internal/app/outbox"
	domainchat "bchat/internal/domain/chat"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

// ErrStorageUnavailable classifies transient backend failures: network
// errors, timeouts, transaction contention. The operation did not complete
// and the caller may retry.
var ErrStorageUnavailable = errors.New("storage: unavailable")

// UnitOfWork coordinates the record-store repositories inside one atomic
// boundary. Every multi-record mutation in the system (message append plus
// summary overwrite, friend accept plus both edge writes) goes through here;
// nothing mutates those records via direct field overwrites.
type UnitOfWork interface {
	Users() domainuser.Repository
	Conversations() domainchat.ConversationRepository
	Messages() domainchat.MessageRepository
	Requests() domainfriends.RequestRepository
	Outbox() appoutbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InjectContext makes the transaction visible to repositories that
	// need it on the context (the mongo session); memory units return the
	// context unchanged.
	InjectContext(ctx context.Context) context.Context
}

// Factory starts unit-of-work instances.
type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
