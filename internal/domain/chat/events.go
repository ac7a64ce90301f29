package chat

import (
	"time"

	"bchat/internal/domain/shared/events"
)

const (
	EventConversationCreated = "chat.conversation.created"
	EventMessageSent         = "chat.message.sent"
)

type ConversationCreated struct {
	events.BaseEvent
	ConversationID string   `json:"conversation_id"`
	Participants   []string `json:"participants"`
}

func NewConversationCreated(c *Conversation, at time.Time) ConversationCreated {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	return ConversationCreated{
		BaseEvent:      events.BaseEvent{Name: EventConversationCreated, Aggregate: string(c.ID), Time: at},
		ConversationID: string(c.ID),
		Participants:   participants,
	}
}

type MessageSent struct {
	events.BaseEvent
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
}

func NewMessageSent(m *Message) MessageSent {
	return MessageSent{
		BaseEvent:      events.BaseEvent{Name: EventMessageSent, Aggregate: string(m.ConversationID), Time: m.Timestamp},
		ConversationID: string(m.ConversationID),
		MessageID:      string(m.ID),
		SenderID:       string(m.SenderID),
	}
}
