package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ID is the account identifier.
type ID string

var (
	ErrNotFound         = errors.New("user: not found")
	ErrIDRequired       = errors.New("user: id required")
	ErrEmailRequired    = errors.New("user: email required")
	ErrNameRequired     = errors.New("user: display name required")
	ErrEmailAlreadyUsed = errors.New("user: email already used")
)

// User is the account document. Created on first authentication, never
// hard-deleted. The Friends set is only mutated through the friend-request
// transaction so both directions stay in step.
type User struct {
	ID           ID
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	Bio          string
	Status       string
	FriendCode   string
	Friends      []ID
	Online       bool
	LastActive   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot is the denormalized display projection embedded in conversation
// and friend-request records. It goes stale until the next write that
// refreshes it; that staleness is accepted.
type Snapshot struct {
	DisplayName string
	PhotoURL    string
	Online      bool
}

func (u *User) Snapshot() Snapshot {
	return Snapshot{DisplayName: u.DisplayName, PhotoURL: u.PhotoURL, Online: u.Online}
}

func (u *User) HasFriend(id ID) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// CreateParams collects the fields required to mint a new account document.
type CreateParams struct {
	ID           ID
	Email        string
	DisplayName  string
	PasswordHash string
	FriendCode   string
	Now          time.Time
}

func New(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	name := strings.TrimSpace(params.DisplayName)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &User{
		ID:           ID(id),
		Email:        email,
		PasswordHash: params.PasswordHash,
		DisplayName:  name,
		FriendCode:   params.FriendCode,
		Status:       "I'm new here!",
		Friends:      []ID{},
		Online:       true,
		LastActive:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ProfileUpdate carries optional field overwrites; nil means leave as is.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
	Bio         *string
	Status      *string
}

// SearchParams filter the account collection by display-name prefix or exact
// friend code, excluding the caller.
type SearchParams struct {
	Query   string
	Exclude ID
	Limit   int
}

// Repository is the account half of the record store.
type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	// ByIDs resolves a batch; missing ids are skipped, not errors.
	ByIDs(ctx context.Context, ids []ID) ([]*User, error)
	Save(ctx context.Context, u *User) error
	Search(ctx context.Context, params SearchParams) ([]*User, error)
	SetPresence(ctx context.Context, id ID, online bool, at time.Time) error
	UpdateProfile(ctx context.Context, id ID, update ProfileUpdate) error
	// AddFriend appends friend to id's friend set if absent. Only called
	// inside the friend-accept transaction together with the mirror call.
	AddFriend(ctx context.Context, id, friend ID) error
}
