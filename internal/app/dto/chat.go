package dto

import (
	"time"

	"bchat/internal/app/realtime"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

type ParticipantDetail struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Online      bool   `json:"online"`
}

type LastMessage struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ConversationSummary struct {
	ID           string                       `json:"id"`
	Participants []string                     `json:"participants"`
	Details      map[string]ParticipantDetail `json:"participant_details"`
	LastMessage  *LastMessage                 `json:"last_message,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}

func NewConversationSummary(c *domainchat.Conversation, details map[domainuser.ID]domainuser.Snapshot) ConversationSummary {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	if details == nil {
		details = c.ParticipantDetails
	}
	mapped := make(map[string]ParticipantDetail, len(details))
	for id, s := range details {
		mapped[string(id)] = ParticipantDetail{DisplayName: s.DisplayName, PhotoURL: s.PhotoURL, Online: s.Online}
	}
	summary := ConversationSummary{
		ID:           string(c.ID),
		Participants: participants,
		Details:      mapped,
		CreatedAt:    c.CreatedAt,
	}
	if c.LastMessage != nil {
		summary.LastMessage = &LastMessage{
			Text:      c.LastMessage.Text,
			SenderID:  string(c.LastMessage.SenderID),
			Timestamp: c.LastMessage.Timestamp,
		}
	}
	return summary
}

type ConversationCollection struct {
	Items []ConversationSummary `json:"items"`
}

func NewConversationCollection(views []realtime.ConversationView) ConversationCollection {
	items := make([]ConversationSummary, 0, len(views))
	for _, v := range views {
		items = append(items, NewConversationSummary(v.Conversation, v.Details))
	}
	return ConversationCollection{Items: items}
}

type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	Deleted        bool      `json:"deleted,omitempty"`
}

func NewMessageView(m *domainchat.Message) MessageView {
	return MessageView{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Text:           m.Text,
		Timestamp:      m.Timestamp,
		Deleted:        m.Deleted,
	}
}

type MessageCollection struct {
	Items []MessageView `json:"items"`
}

func NewMessageCollection(messages []*domainchat.Message) MessageCollection {
	items := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		items = append(items, NewMessageView(m))
	}
	return MessageCollection{Items: items}
}
