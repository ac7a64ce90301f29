package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bchat/internal/app/errbus"
	appoutbox "bchat/internal/app/outbox"
	"bchat/internal/app/realtime"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

// Log is the append-only message log. Every append pairs the message insert
// with the conversation-summary overwrite in one transaction, so a list view
// reading only lastMessage can never observe a phantom or missing summary.
type Log struct {
	UoW     uow.Factory
	Errors  *errbus.Bus
	Sync    *realtime.Syncer
	Encoder appoutbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Append validates, persists and summarizes one message.
func (l *Log) Append(ctx context.Context, conversation domainchat.ConversationID, sender domainuser.ID, text string) (*domainchat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domainchat.ErrEmptyMessage
	}

	unit, err := l.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	if _, err := unit.Conversations().ByID(ctx, conversation); err != nil {
		return nil, errbus.Intercept(l.Errors, err)
	}

	message := &domainchat.Message{
		ID:             domainchat.MessageID(uuid.NewString()),
		ConversationID: conversation,
		SenderID:       sender,
		Text:           text,
		Timestamp:      l.now(),
	}
	if err := unit.Messages().Insert(ctx, message); err != nil {
		return nil, errbus.Intercept(l.Errors, err)
	}
	last := domainchat.LastMessage{Text: text, SenderID: sender, Timestamp: message.Timestamp}
	if err := unit.Conversations().SetLastMessage(ctx, conversation, last); err != nil {
		return nil, errbus.Intercept(l.Errors, err)
	}
	if err := appoutbox.Record(ctx, unit.Outbox(), l.Encoder, domainchat.NewMessageSent(message)); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, errbus.Intercept(l.Errors, err)
	}
	return message, nil
}

// SoftDelete tombstones a message in place. The conversation summary is left
// untouched even when the tombstoned message is the newest; the preview going
// stale on delete is accepted behavior.
func (l *Log) SoftDelete(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID) error {
	unit, err := l.UoW.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	defer unit.Rollback(ctx)
	ctx = unit.InjectContext(ctx)

	if _, err := unit.Messages().ByID(ctx, conversation, id); err != nil {
		return errbus.Intercept(l.Errors, err)
	}
	if err := unit.Messages().MarkDeleted(ctx, conversation, id, domainchat.DeletedPlaceholder); err != nil {
		return errbus.Intercept(l.Errors, err)
	}
	if err := unit.Commit(ctx); err != nil {
		return errbus.Intercept(l.Errors, err)
	}
	return nil
}

// Message returns one log entry.
func (l *Log) Message(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	unit, err := l.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	message, err := unit.Messages().ByID(unit.InjectContext(ctx), conversation, id)
	if err != nil {
		return nil, errbus.Intercept(l.Errors, err)
	}
	return message, nil
}

// History returns the current full log once, timestamp ascending.
func (l *Log) History(ctx context.Context, conversation domainchat.ConversationID) ([]*domainchat.Message, error) {
	if l.Sync != nil {
		msgs, err := l.Sync.SnapshotMessages(ctx, conversation)
		return msgs, errbus.Intercept(l.Errors, err)
	}
	unit, err := l.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer unit.Rollback(ctx)
	msgs, err := unit.Messages().ListByConversation(unit.InjectContext(ctx), conversation)
	return msgs, errbus.Intercept(l.Errors, err)
}

// Stream emits the full ordered log as a restartable snapshot sequence,
// re-emitted on every mutation.
func (l *Log) Stream(ctx context.Context, conversation domainchat.ConversationID, onSnapshot func([]*domainchat.Message), onError func(error)) realtime.Unsubscribe {
	return l.Sync.SubscribeMessages(ctx, conversation, onSnapshot, func(err error) {
		if onError != nil {
			onError(errbus.Intercept(l.Errors, err))
		}
	})
}
