package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationKeyOrderIndependent(t *testing.T) {
	a, err := ConversationKey("uid-b", "uid-a")
	require.NoError(t, err)
	b, err := ConversationKey("uid-a", "uid-b")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "uid-a_uid-b", a)
}

func TestConversationKeyRejectsSameUser(t *testing.T) {
	_, err := ConversationKey("uid-a", "uid-a")
	assert.ErrorIs(t, err, ErrSameUser)

	// Whitespace does not smuggle a self-pair through.
	_, err = ConversationKey("uid-a", " uid-a ")
	assert.ErrorIs(t, err, ErrSameUser)
}

func TestConversationKeyRequiresBothIDs(t *testing.T) {
	_, err := ConversationKey("", "uid-b")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = ConversationKey("uid-a", "   ")
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestRequestKeyMatchesConversationKeyShape(t *testing.T) {
	rk, err := RequestKey("zeta", "alpha")
	require.NoError(t, err)
	ck, err := ConversationKey("zeta", "alpha")
	require.NoError(t, err)
	assert.Equal(t, ck, rk)
}

func TestSortPair(t *testing.T) {
	first, second := SortPair("b", "a")
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)

	first, second = SortPair("a", "b")
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}

func TestNewFriendCode(t *testing.T) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewFriendCode()
		require.NoError(t, err)
		require.Len(t, code, 8)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
		}
		seen[code] = true
	}
	// 50 draws from a 36^8 space colliding would point at a broken source.
	assert.Greater(t, len(seen), 45)
}
