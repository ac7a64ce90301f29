package memory

import (
	"context"
	"sort"
	"time"

	"bchat/internal/app/realtime"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

// ConversationRepository implements domainchat.ConversationRepository.
type ConversationRepository struct {
	store *Store
	unit  *Unit
}

func NewConversationRepository(store *Store) *ConversationRepository {
	return &ConversationRepository{store: store}
}

var _ domainchat.ConversationRepository = (*ConversationRepository)(nil)

func conversationPath(id domainchat.ConversationID) string {
	return "conversations/" + string(id)
}

func (r *ConversationRepository) submit(o op) error {
	if r.unit != nil {
		return r.unit.stage(o)
	}
	return r.store.run(o)
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var out *domainchat.Conversation
	err := r.store.read(conversationPath(id), "get", func(st *state) error {
		c, ok := st.conversations[id]
		if !ok {
			return domainchat.ErrConversationNotFound
		}
		out = cloneConversation(c)
		return nil
	})
	return out, err
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainchat.Conversation) error {
	stored := cloneConversation(c)
	return r.submit(op{
		collection: realtime.CollectionConversations,
		path:       conversationPath(c.ID),
		operation:  "create",
		payload:    stored,
		apply: func(st *state) error {
			if _, ok := st.conversations[stored.ID]; ok {
				return domainchat.ErrConversationExists
			}
			st.conversations[stored.ID] = stored
			return nil
		},
	})
}

func (r *ConversationRepository) ListForUser(ctx context.Context, id domainuser.ID) ([]*domainchat.Conversation, error) {
	var out []*domainchat.Conversation
	err := r.store.read("conversations", "list", func(st *state) error {
		for _, c := range st.conversations {
			for _, p := range c.Participants {
				if p == id {
					out = append(out, cloneConversation(c))
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return activityOf(out[i]).After(activityOf(out[j]))
	})
	return out, nil
}

func activityOf(c *domainchat.Conversation) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

func (r *ConversationRepository) SetLastMessage(ctx context.Context, id domainchat.ConversationID, last domainchat.LastMessage) error {
	return r.submit(op{
		collection: realtime.CollectionConversations,
		path:       conversationPath(id),
		operation:  "update",
		payload:    last,
		apply: func(st *state) error {
			c, ok := st.conversations[id]
			if !ok {
				return domainchat.ErrConversationNotFound
			}
			next := cloneConversation(c)
			next.LastMessage = &last
			st.conversations[id] = next
			return nil
		},
	})
}

// MessageRepository implements domainchat.MessageRepository.
type MessageRepository struct {
	store *Store
	unit  *Unit
}

func NewMessageRepository(store *Store) *MessageRepository {
	return &MessageRepository{store: store}
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)

func messagePath(conversation domainchat.ConversationID, id domainchat.MessageID) string {
	return "conversations/" + string(conversation) + "/messages/" + string(id)
}

func (r *MessageRepository) submit(o op) error {
	if r.unit != nil {
		return r.unit.stage(o)
	}
	return r.store.run(o)
}

func (r *MessageRepository) Insert(ctx context.Context, m *domainchat.Message) error {
	stored := cloneMessage(m)
	return r.submit(op{
		collection: realtime.CollectionMessages,
		path:       messagePath(m.ConversationID, m.ID),
		operation:  "create",
		payload:    stored,
		apply: func(st *state) error {
			st.messages[stored.ConversationID] = append(st.messages[stored.ConversationID], stored)
			return nil
		},
	})
}

func (r *MessageRepository) ByID(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	var out *domainchat.Message
	err := r.store.read(messagePath(conversation, id), "get", func(st *state) error {
		for _, m := range st.messages[conversation] {
			if m.ID == id {
				out = cloneMessage(m)
				return nil
			}
		}
		return domainchat.ErrMessageNotFound
	})
	return out, err
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversation domainchat.ConversationID) ([]*domainchat.Message, error) {
	var out []*domainchat.Message
	err := r.store.read("conversations/"+string(conversation)+"/messages", "list", func(st *state) error {
		for _, m := range st.messages[conversation] {
			out = append(out, cloneMessage(m))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *MessageRepository) MarkDeleted(ctx context.Context, conversation domainchat.ConversationID, id domainchat.MessageID, placeholder string) error {
	return r.submit(op{
		collection: realtime.CollectionMessages,
		path:       messagePath(conversation, id),
		operation:  "update",
		apply: func(st *state) error {
			msgs := st.messages[conversation]
			for i, m := range msgs {
				if m.ID == id {
					next := append([]*domainchat.Message(nil), msgs...)
					tombstone := cloneMessage(m)
					tombstone.Text = placeholder
					tombstone.Deleted = true
					next[i] = tombstone
					st.messages[conversation] = next
					return nil
				}
			}
			return domainchat.ErrMessageNotFound
		},
	})
}
