package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchat/internal/app/errbus"
	"bchat/internal/app/realtime"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
)

func newUser(t *testing.T, id, name string) *domainuser.User {
	t.Helper()
	u, err := domainuser.New(domainuser.CreateParams{
		ID:          domainuser.ID(id),
		Email:       id + "@example.com",
		DisplayName: name,
		Now:         time.Now(),
	})
	require.NoError(t, err)
	return u
}

func commitUser(t *testing.T, factory Factory, u *domainuser.User) {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, u))
	require.NoError(t, unit.Commit(ctx))
}

func TestCommitAppliesAllStagedOps(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	commitUser(t, factory, newUser(t, "alice", "Alice"))
	commitUser(t, factory, newUser(t, "bob", "Bob"))
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	conversation := &domainchat.Conversation{
		ID:           "alice_bob",
		Participants: []domainuser.ID{"alice", "bob"},
		CreatedAt:    time.Now(),
	}
	require.NoError(t, unit.Conversations().Create(ctx, conversation))
	require.NoError(t, unit.Messages().Insert(ctx, &domainchat.Message{
		ID: "m1", ConversationID: "alice_bob", SenderID: "alice", Text: "hi", Timestamp: time.Now(),
	}))
	require.NoError(t, unit.Commit(ctx))

	read, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer read.Rollback(ctx)
	got, err := read.Conversations().ByID(ctx, "alice_bob")
	require.NoError(t, err)
	assert.Equal(t, conversation.ID, got.ID)
	messages, err := read.Messages().ListByConversation(ctx, "alice_bob")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestCommitRollsBackOnMidTransactionFailure(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	commitUser(t, factory, newUser(t, "alice", "Alice"))
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(ctx, &domainchat.Conversation{
		ID:           "alice_bob",
		Participants: []domainuser.ID{"alice", "bob"},
		CreatedAt:    time.Now(),
	}))
	// This op fails at apply time: the summary targets a different record.
	require.NoError(t, unit.Conversations().SetLastMessage(ctx, "alice_carol", domainchat.LastMessage{
		Text: "hi", SenderID: "alice", Timestamp: time.Now(),
	}))
	err = unit.Commit(ctx)
	require.ErrorIs(t, err, domainchat.ErrConversationNotFound)

	// The earlier staged insert must not have survived.
	read, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer read.Rollback(ctx)
	_, err = read.Conversations().ByID(ctx, "alice_bob")
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)
}

func TestRollbackDiscardsStagedOps(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, newUser(t, "alice", "Alice")))
	require.NoError(t, unit.Rollback(ctx))
	require.NoError(t, unit.Commit(ctx))

	read, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer read.Rollback(ctx)
	_, err = read.Users().ByID(ctx, "alice")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}

func TestSaveEnforcesEmailUniqueness(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	commitUser(t, factory, newUser(t, "alice", "Alice"))
	ctx := context.Background()

	dup := newUser(t, "alice2", "Other Alice")
	dup.Email = "alice@example.com"
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, dup))
	assert.ErrorIs(t, unit.Commit(ctx), domainuser.ErrEmailAlreadyUsed)
}

func TestDenyFuncSurfacesPermissionError(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}
	store.DenyFunc(func(path, operation string) bool {
		return operation == "create"
	})
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Conversations().Create(ctx, &domainchat.Conversation{
		ID: "alice_bob", Participants: []domainuser.ID{"alice", "bob"},
	}))
	err = unit.Commit(ctx)

	var perm *errbus.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "conversations/alice_bob", perm.Path)
	assert.Equal(t, "create", perm.Operation)
}

func TestWatchCoalescesSignals(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}

	ch, cancel := store.Watch(realtime.CollectionUsers)
	defer cancel()

	commitUser(t, factory, newUser(t, "alice", "Alice"))
	commitUser(t, factory, newUser(t, "bob", "Bob"))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a watch signal")
	}
	// Burst writes collapse into at most one pending signal; the channel
	// never blocks the writer.
	select {
	case <-ch:
	default:
	}

	cancel()
	cancel() // idempotent
	commitUser(t, factory, newUser(t, "carol", "Carol"))
	select {
	case <-ch:
		// A signal staged before cancellation may still drain; new writes
		// after cancel never signal because the channel was removed.
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchIgnoresOtherCollections(t *testing.T) {
	store := NewStore()
	factory := Factory{Store: store}

	ch, cancel := store.Watch(realtime.CollectionMessages)
	defer cancel()

	commitUser(t, factory, newUser(t, "alice", "Alice"))
	select {
	case <-ch:
		t.Fatal("user write must not signal the messages watcher")
	case <-time.After(100 * time.Millisecond):
	}
}
