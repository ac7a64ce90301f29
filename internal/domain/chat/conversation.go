package chat

import (
	"context"
	"errors"
	"time"

	domainuser "bchat/internal/domain/user"
)

// ConversationID is the deterministic participant key, never a surrogate id.
type ConversationID string

// MessageID is store-generated.
type MessageID string

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrConversationExists   = errors.New("chat: conversation already exists")
	ErrMessageNotFound      = errors.New("chat: message not found")
	ErrEmptyMessage         = errors.New("chat: message text empty")
)

// DeletedPlaceholder replaces the text of tombstoned messages.
const DeletedPlaceholder = "This message was deleted"

// LastMessage is the denormalized summary kept on the conversation document
// so list views never have to touch the log.
type LastMessage struct {
	Text      string
	SenderID  domainuser.ID
	Timestamp time.Time
}

// Conversation is a durable two-party thread. The participant set is fixed at
// creation; at most one conversation exists per unordered pair.
type Conversation struct {
	ID                 ConversationID
	Participants       []domainuser.ID
	ParticipantDetails map[domainuser.ID]domainuser.Snapshot
	LastMessage        *LastMessage
	CreatedAt          time.Time
}

// Other returns the participant that is not self.
func (c *Conversation) Other(self domainuser.ID) domainuser.ID {
	for _, p := range c.Participants {
		if p != self {
			return p
		}
	}
	return ""
}

// Message is an append-only log entry. Once written only Text and Deleted may
// change, and only through the tombstone path.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       domainuser.ID
	Text           string
	Timestamp      time.Time
	Deleted        bool
}

// ConversationRepository is the conversation half of the record store.
type ConversationRepository interface {
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// Create inserts the record or fails with ErrConversationExists; the
	// directory handles the race by re-reading the winner's write.
	Create(ctx context.Context, c *Conversation) error
	// ListForUser returns the user's conversations, newest activity first.
	ListForUser(ctx context.Context, id domainuser.ID) ([]*Conversation, error)
	SetLastMessage(ctx context.Context, id ConversationID, last LastMessage) error
}

// MessageRepository is the message-log half of the record store.
type MessageRepository interface {
	Insert(ctx context.Context, m *Message) error
	ByID(ctx context.Context, conversation ConversationID, id MessageID) (*Message, error)
	// ListByConversation orders by timestamp ascending, id as tiebreak.
	ListByConversation(ctx context.Context, conversation ConversationID) ([]*Message, error)
	// MarkDeleted tombstones in place: placeholder text, deleted flag set.
	MarkDeleted(ctx context.Context, conversation ConversationID, id MessageID, placeholder string) error
}
