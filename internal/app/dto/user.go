package dto

import (
	"time"

	domainuser "bchat/internal/domain/user"
)

type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Status      string    `json:"status,omitempty"`
	FriendCode  string    `json:"friend_code,omitempty"`
	Online      bool      `json:"online"`
	LastActive  time.Time `json:"last_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserProfile renders the caller's own account, private fields included.
func NewUserProfile(u *domainuser.User) UserProfile {
	return UserProfile{
		ID:          string(u.ID),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Bio:         u.Bio,
		Status:      u.Status,
		FriendCode:  u.FriendCode,
		Online:      u.Online,
		LastActive:  u.LastActive,
		CreatedAt:   u.CreatedAt,
	}
}

// NewPublicProfile renders another account: no email.
func NewPublicProfile(u *domainuser.User) UserProfile {
	p := NewUserProfile(u)
	p.Email = ""
	return p
}

type UserList struct {
	Items []UserProfile `json:"items"`
}

func NewUserList(users []*domainuser.User) UserList {
	items := make([]UserProfile, 0, len(users))
	for _, u := range users {
		items = append(items, NewPublicProfile(u))
	}
	return UserList{Items: items}
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

func NewAuthResponse(u *domainuser.User, token string) AuthResponse {
	return AuthResponse{Token: token, User: NewUserProfile(u)}
}
