package mongo

import (
	"time"

	domainchat "bchat/internal/domain/chat"
	domainfriends "bchat/internal/domain/friends"
	domainuser "bchat/internal/domain/user"
)

const (
	collectionUsers         = "users"
	collectionConversations = "conversations"
	collectionMessages      = "messages"
	collectionRequests      = "friendRequests"
	collectionOutbox        = "outbox"
)

type userDocument struct {
	ID           string   `bson:"_id"`
	Email        string   `bson:"email"`
	PasswordHash string   `bson:"password_hash"`
	DisplayName  string   `bson:"display_name"`
	PhotoURL     string   `bson:"photo_url"`
	Bio          string   `bson:"bio"`
	Status       string   `bson:"status"`
	FriendCode   string   `bson:"friend_code"`
	Friends      []string `bson:"friends"`
	Online       bool     `bson:"online"`
	LastActive   int64    `bson:"last_active"`
	CreatedAt    int64    `bson:"created_at"`
	UpdatedAt    int64    `bson:"updated_at"`
}

func userToDocument(u *domainuser.User) userDocument {
	friends := make([]string, 0, len(u.Friends))
	for _, f := range u.Friends {
		friends = append(friends, string(f))
	}
	return userDocument{
		ID:           string(u.ID),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		PhotoURL:     u.PhotoURL,
		Bio:          u.Bio,
		Status:       u.Status,
		FriendCode:   u.FriendCode,
		Friends:      friends,
		Online:       u.Online,
		LastActive:   u.LastActive.UnixMilli(),
		CreatedAt:    u.CreatedAt.UnixMilli(),
		UpdatedAt:    u.UpdatedAt.UnixMilli(),
	}
}

func userFromDocument(d userDocument) *domainuser.User {
	friends := make([]domainuser.ID, 0, len(d.Friends))
	for _, f := range d.Friends {
		friends = append(friends, domainuser.ID(f))
	}
	return &domainuser.User{
		ID:           domainuser.ID(d.ID),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.DisplayName,
		PhotoURL:     d.PhotoURL,
		Bio:          d.Bio,
		Status:       d.Status,
		FriendCode:   d.FriendCode,
		Friends:      friends,
		Online:       d.Online,
		LastActive:   time.UnixMilli(d.LastActive),
		CreatedAt:    time.UnixMilli(d.CreatedAt),
		UpdatedAt:    time.UnixMilli(d.UpdatedAt),
	}
}

type snapshotDocument struct {
	DisplayName string `bson:"display_name"`
	PhotoURL    string `bson:"photo_url"`
	Online      bool   `bson:"online"`
}

type lastMessageDocument struct {
	Text      string `bson:"text"`
	SenderID  string `bson:"sender_id"`
	Timestamp int64  `bson:"timestamp"`
}

type conversationDocument struct {
	ID           string                      `bson:"_id"`
	Participants []string                    `bson:"participants"`
	Details      map[string]snapshotDocument `bson:"participant_details"`
	LastMessage  *lastMessageDocument        `bson:"last_message,omitempty"`
	CreatedAt    int64                       `bson:"created_at"`
}

func conversationToDocument(c *domainchat.Conversation) conversationDocument {
	participants := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, string(p))
	}
	details := make(map[string]snapshotDocument, len(c.ParticipantDetails))
	for id, s := range c.ParticipantDetails {
		details[string(id)] = snapshotDocument{DisplayName: s.DisplayName, PhotoURL: s.PhotoURL, Online: s.Online}
	}
	doc := conversationDocument{
		ID:           string(c.ID),
		Participants: participants,
		Details:      details,
		CreatedAt:    c.CreatedAt.UnixMilli(),
	}
	if c.LastMessage != nil {
		doc.LastMessage = &lastMessageDocument{
			Text:      c.LastMessage.Text,
			SenderID:  string(c.LastMessage.SenderID),
			Timestamp: c.LastMessage.Timestamp.UnixMilli(),
		}
	}
	return doc
}

func conversationFromDocument(d conversationDocument) *domainchat.Conversation {
	participants := make([]domainuser.ID, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, domainuser.ID(p))
	}
	details := make(map[domainuser.ID]domainuser.Snapshot, len(d.Details))
	for id, s := range d.Details {
		details[domainuser.ID(id)] = domainuser.Snapshot{DisplayName: s.DisplayName, PhotoURL: s.PhotoURL, Online: s.Online}
	}
	c := &domainchat.Conversation{
		ID:                 domainchat.ConversationID(d.ID),
		Participants:       participants,
		ParticipantDetails: details,
		CreatedAt:          time.UnixMilli(d.CreatedAt),
	}
	if d.LastMessage != nil {
		c.LastMessage = &domainchat.LastMessage{
			Text:      d.LastMessage.Text,
			SenderID:  domainuser.ID(d.LastMessage.SenderID),
			Timestamp: time.UnixMilli(d.LastMessage.Timestamp),
		}
	}
	return c
}

type messageDocument struct {
	ID             string `bson:"_id"`
	ConversationID string `bson:"conversation_id"`
	SenderID       string `bson:"sender_id"`
	Text           string `bson:"text"`
	Timestamp      int64  `bson:"timestamp"`
	Deleted        bool   `bson:"deleted"`
}

func messageToDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		Text:           m.Text,
		Timestamp:      m.Timestamp.UnixMilli(),
		Deleted:        m.Deleted,
	}
}

func messageFromDocument(d messageDocument) *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		SenderID:       domainuser.ID(d.SenderID),
		Text:           d.Text,
		Timestamp:      time.UnixMilli(d.Timestamp),
		Deleted:        d.Deleted,
	}
}

type requestDocument struct {
	ID           string `bson:"_id"`
	From         string `bson:"from"`
	To           string `bson:"to"`
	FromName     string `bson:"from_name"`
	FromPhotoURL string `bson:"from_photo_url"`
	Status       string `bson:"status"`
	CreatedAt    int64  `bson:"created_at"`
	RespondedAt  int64  `bson:"responded_at,omitempty"`
}

func requestToDocument(r *domainfriends.Request) requestDocument {
	doc := requestDocument{
		ID:           string(r.ID),
		From:         string(r.From),
		To:           string(r.To),
		FromName:     r.FromName,
		FromPhotoURL: r.FromPhotoURL,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt.UnixMilli(),
	}
	if !r.RespondedAt.IsZero() {
		doc.RespondedAt = r.RespondedAt.UnixMilli()
	}
	return doc
}

func requestFromDocument(d requestDocument) *domainfriends.Request {
	r := &domainfriends.Request{
		ID:           domainfriends.RequestID(d.ID),
		From:         domainuser.ID(d.From),
		To:           domainuser.ID(d.To),
		FromName:     d.FromName,
		FromPhotoURL: d.FromPhotoURL,
		Status:       domainfriends.Status(d.Status),
		CreatedAt:    time.UnixMilli(d.CreatedAt),
	}
	if d.RespondedAt != 0 {
		r.RespondedAt = time.UnixMilli(d.RespondedAt)
	}
	return r
}
