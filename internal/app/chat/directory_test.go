package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchat/internal/app/errbus"
	"bchat/internal/app/realtime"
	"bchat/internal/app/uow"
	domainchat "bchat/internal/domain/chat"
	domainuser "bchat/internal/domain/user"
	"bchat/internal/infra/storage/memory"
)

type chatEnv struct {
	store     *memory.Store
	factory   memory.Factory
	bus       *errbus.Bus
	directory *Directory
	log       *Log
	syncer    *realtime.Syncer
}

func newChatEnv(t *testing.T) *chatEnv {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	bus := errbus.New()
	t.Cleanup(bus.Close)
	syncer := &realtime.Syncer{UoW: factory, Notify: store}
	return &chatEnv{
		store:     store,
		factory:   factory,
		bus:       bus,
		directory: &Directory{UoW: factory, Errors: bus},
		log:       &Log{UoW: factory, Errors: bus, Sync: syncer},
		syncer:    syncer,
	}
}

func (e *chatEnv) seedUser(t *testing.T, id, name string) {
	t.Helper()
	ctx := context.Background()
	unit, err := e.factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	u, err := domainuser.New(domainuser.CreateParams{
		ID:          domainuser.ID(id),
		Email:       id + "@example.com",
		DisplayName: name,
		Now:         time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, u))
	require.NoError(t, unit.Commit(ctx))
}

func (e *chatEnv) listFor(t *testing.T, id string) []*domainchat.Conversation {
	t.Helper()
	ctx := context.Background()
	unit, err := e.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	conversations, err := unit.Conversations().ListForUser(ctx, domainuser.ID(id))
	require.NoError(t, err)
	return conversations
}

func TestGetOrCreateDerivesDeterministicID(t *testing.T) {
	env := newChatEnv(t)
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	conversation, err := env.directory.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, domainchat.ConversationID("alice_bob"), conversation.ID)
	assert.Equal(t, []domainuser.ID{"alice", "bob"}, conversation.Participants)
	assert.Equal(t, "Alice", conversation.ParticipantDetails["alice"].DisplayName)
	assert.Equal(t, "Bob", conversation.ParticipantDetails["bob"].DisplayName)
}

func TestGetOrCreateIsIdempotentAcrossBothInitiators(t *testing.T) {
	env := newChatEnv(t)
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	first, err := env.directory.GetOrCreate(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := env.directory.GetOrCreate(ctx, "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, env.listFor(t, "alice"), 1)
	assert.Len(t, env.listFor(t, "bob"), 1)
}

func TestGetOrCreateRejectsSelfConversation(t *testing.T) {
	env := newChatEnv(t)
	env.seedUser(t, "alice", "Alice")

	_, err := env.directory.GetOrCreate(context.Background(), "alice", "alice")
	require.Error(t, err)
	assert.Empty(t, env.listFor(t, "alice"))
}

func TestGetOrCreateRequiresBothUsers(t *testing.T) {
	env := newChatEnv(t)
	env.seedUser(t, "alice", "Alice")

	_, err := env.directory.GetOrCreate(context.Background(), "alice", "ghost")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
	assert.Empty(t, env.listFor(t, "alice"))
}

func TestGetOrCreateConcurrentRaceCollapsesToOneRecord(t *testing.T) {
	env := newChatEnv(t)
	env.seedUser(t, "alice", "Alice")
	env.seedUser(t, "bob", "Bob")
	ctx := context.Background()

	const attempts = 16
	results := make([]domainchat.ConversationID, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			initiator, target := domainuser.ID("alice"), domainuser.ID("bob")
			if n%2 == 1 {
				initiator, target = target, initiator
			}
			conversation, err := env.directory.GetOrCreate(ctx, initiator, target)
			if assert.NoError(t, err) {
				results[n] = conversation.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		assert.Equal(t, domainchat.ConversationID("alice_bob"), id)
	}
	assert.Len(t, env.listFor(t, "alice"), 1)
}

func TestDirectoryGetReturnsNotFoundBeforeCreation(t *testing.T) {
	env := newChatEnv(t)

	_, err := env.directory.Get(context.Background(), "alice_bob")
	assert.ErrorIs(t, err, domainchat.ErrConversationNotFound)
}
