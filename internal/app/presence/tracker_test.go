package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchat/internal/app/errbus"
	"bchat/internal/app/uow"
	domainuser "bchat/internal/domain/user"
	"bchat/internal/infra/storage/memory"
)

func seedUser(t *testing.T, factory memory.Factory, id string) {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	u, err := domainuser.New(domainuser.CreateParams{
		ID:          domainuser.ID(id),
		Email:       id + "@example.com",
		DisplayName: id,
		Now:         time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, u))
	require.NoError(t, unit.Commit(ctx))
}

func getUser(t *testing.T, factory memory.Factory, id string) *domainuser.User {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	u, err := unit.Users().ByID(ctx, domainuser.ID(id))
	require.NoError(t, err)
	return u
}

func TestMarkOfflineAndOnline(t *testing.T) {
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	seedUser(t, factory, "alice")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	tracker := &Tracker{UoW: factory, Now: func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}}
	ctx := context.Background()

	require.NoError(t, tracker.MarkOffline(ctx, "alice"))
	u := getUser(t, factory, "alice")
	assert.False(t, u.Online)
	offlineAt := u.LastActive

	require.NoError(t, tracker.MarkOnline(ctx, "alice"))
	u = getUser(t, factory, "alice")
	assert.True(t, u.Online)
	assert.True(t, u.LastActive.After(offlineAt))
}

func TestMarkOnlineUnknownUser(t *testing.T) {
	store := memory.NewStore()
	tracker := &Tracker{UoW: memory.Factory{Store: store}}

	err := tracker.MarkOnline(context.Background(), "ghost")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}

func TestPresenceWriteDenied(t *testing.T) {
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	seedUser(t, factory, "alice")

	bus := errbus.New()
	defer bus.Close()
	events := make(chan errbus.PermissionError, 1)
	defer bus.Subscribe(func(ev errbus.PermissionError) { events <- ev })()

	store.DenyFunc(func(path, operation string) bool {
		return operation == "update"
	})
	tracker := &Tracker{UoW: factory, Errors: bus}
	err := tracker.MarkOffline(context.Background(), "alice")
	require.ErrorIs(t, err, errbus.ErrPermissionDenied)

	select {
	case ev := <-events:
		assert.Equal(t, "update", ev.Operation)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a permission event on the bus")
	}
	assert.True(t, getUser(t, factory, "alice").Online)
}
