package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo sessions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a session transaction. Repositories read the session off the
// context injected by the unit, so the same repository values serve every
// transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, wrapErr("transactions", "begin", err)
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, wrapErr("transactions", "begin", err)
	}
	return &Unit{db: f.DB, session: session}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session
}

func (u *Unit) Users() domainuser.Repository {
	return &UserRepository{db: u.db}
}

func (u *Unit) Conversations() domainchat.ConversationRepository {
	return &ConversationRepository{db: u.db}
}

func (u *Unit) Messages() domainchat.MessageRepository {
	return &MessageRepository{db: u.db}
}

func (u *Unit) Requests() domainfriends.RequestRepository {
	return &RequestRepository{db: u.db}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return &OutboxStore{db: u.db}
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return wrapErr("transactions", "commit", u.session.CommitTransaction(ctx))
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext makes the session visible to the repositories.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
