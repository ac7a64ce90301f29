package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// defaultTokenBytes is the entropy behind a session token before encoding.
const defaultTokenBytes = 32

// RandomTokenGenerator mints opaque bearer tokens for the session store.
// Tokens are URL-safe base64 with no padding so they travel cleanly in an
// Authorization header.
type RandomTokenGenerator struct {
	Size int
}

func (g RandomTokenGenerator) NewToken() (string, error) {
	size := g.Size
	if size <= 0 {
		size = defaultTokenBytes
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token: entropy read failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
