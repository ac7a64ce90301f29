package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSameUser rejects self-targeting conversations and requests.
	ErrSameUser = errors.New("identity: operands reference the same user")
	// ErrIDRequired rejects blank identifiers.
	ErrIDRequired = errors.New("identity: user id required")
)

const keySeparator = "_"

// ConversationKey derives the canonical conversation id for a user pair.
// The same key comes out regardless of argument order, which is what makes
// concurrent creation collapse onto a single record.
func ConversationKey(a, b string) (string, error) {
	return pairKey(a, b)
}

// RequestKey derives the canonical friend-request id for a user pair.
func RequestKey(a, b string) (string, error) {
	return pairKey(a, b)
}

// SortPair returns the two ids in key order.
func SortPair(a, b string) (string, string) {
	if strings.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

func pairKey(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", ErrIDRequired
	}
	if a == b {
		return "", ErrSameUser
	}
	lo, hi := SortPair(a, b)
	return lo + keySeparator + hi, nil
}

const (
	friendCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	friendCodeLength   = 8
)

// NewFriendCode returns a short random public handle for user lookup.
// Uniqueness is not guaranteed here; the store enforces nothing either, the
// code is merely long enough that collisions are unlikely.
func NewFriendCode() (string, error) {
	buf := make([]byte, friendCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: entropy read failed: %w", err)
	}
	out := make([]byte, friendCodeLength)
	for i, b := range buf {
		out[i] = friendCodeAlphabet[int(b)%len(friendCodeAlphabet)]
	}
	return string(out), nil
}
