package dto

import (
	"time"

	domainfriends "bchat/internal/domain/friends"
)

type FriendSummary struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	FriendCode  string    `json:"friend_code,omitempty"`
	Online      bool      `json:"online"`
	LastActive  time.Time `json:"last_active"`
}

type FriendCollection struct {
	Items []FriendSummary `json:"items"`
}

func NewFriendCollection(friends []domainfriends.Friend) FriendCollection {
	items := make([]FriendSummary, 0, len(friends))
	for _, f := range friends {
		items = append(items, FriendSummary{
			ID:          string(f.ID),
			DisplayName: f.DisplayName,
			PhotoURL:    f.PhotoURL,
			FriendCode:  f.FriendCode,
			Online:      f.Online,
			LastActive:  f.LastActive,
		})
	}
	return FriendCollection{Items: items}
}

type FriendRequestView struct {
	ID           string     `json:"id"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	FromName     string     `json:"from_name"`
	FromPhotoURL string     `json:"from_photo_url,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

func NewFriendRequestView(r *domainfriends.Request) FriendRequestView {
	view := FriendRequestView{
		ID:           string(r.ID),
		From:         string(r.From),
		To:           string(r.To),
		FromName:     r.FromName,
		FromPhotoURL: r.FromPhotoURL,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
	}
	if !r.RespondedAt.IsZero() {
		at := r.RespondedAt
		view.RespondedAt = &at
	}
	return view
}

type FriendRequestCollection struct {
	Items []FriendRequestView `json:"items"`
}

func NewFriendRequestCollection(requests []*domainfriends.Request) FriendRequestCollection {
	items := make([]FriendRequestView, 0, len(requests))
	for _, r := range requests {
		items = append(items, NewFriendRequestView(r))
	}
	return FriendRequestCollection{Items: items}
}
