package friends

import (
	"context"
	"errors"
	"time"

	domainuser "bchat/internal/domain/user"
)

// RequestID is the deterministic request key for the unordered user pair.
type RequestID string

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	// No stored "declined": declining deletes the record outright.
)

var (
	ErrRequestNotFound = errors.New("friends: request not found")
	// ErrAlreadyExists suppresses duplicate sends; a request in any status
	// for the pair blocks a new one.
	ErrAlreadyExists = errors.New("friends: request already exists")
)

// Request is owned by the initiator until the recipient acts on it.
// FromName/FromPhotoURL are a denormalized snapshot of the sender taken at
// send time so the recipient's view needs no extra lookup.
type Request struct {
	ID           RequestID
	From         domainuser.ID
	To           domainuser.ID
	FromName     string
	FromPhotoURL string
	Status       Status
	CreatedAt    time.Time
	RespondedAt  time.Time
}

// Friend is the resolved summary returned by FriendsOf.
type Friend struct {
	ID          domainuser.ID
	DisplayName string
	PhotoURL    string
	FriendCode  string
	Online      bool
	LastActive  time.Time
}

// RequestRepository is the friend-request half of the record store.
type RequestRepository interface {
	ByID(ctx context.Context, id RequestID) (*Request, error)
	// Create inserts the record or fails with ErrAlreadyExists.
	Create(ctx context.Context, r *Request) error
	SetStatus(ctx context.Context, id RequestID, status Status, at time.Time) error
	Delete(ctx context.Context, id RequestID) error
	// ListIncoming returns pending requests addressed to the user, newest first.
	ListIncoming(ctx context.Context, to domainuser.ID) ([]*Request, error)
}
