package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchat/internal/app/uow"
	domainuser "bchat/internal/domain/user"
	"bchat/internal/infra/storage/memory"
)

func newUsersEnv(t *testing.T) (*Service, memory.Factory) {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	return &Service{UoW: factory}, factory
}

func seed(t *testing.T, factory memory.Factory, id, name, code string) {
	t.Helper()
	ctx := context.Background()
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	u, err := domainuser.New(domainuser.CreateParams{
		ID:          domainuser.ID(id),
		Email:       id + "@example.com",
		DisplayName: name,
		FriendCode:  code,
		Now:         time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, unit.Users().Save(ctx, u))
	require.NoError(t, unit.Commit(ctx))
}

func TestSearchMatchesNamePrefixAndFriendCode(t *testing.T) {
	service, factory := newUsersEnv(t)
	seed(t, factory, "u1", "Alice", "AAAA1111")
	seed(t, factory, "u2", "Alicia", "BBBB2222")
	seed(t, factory, "u3", "Bob", "CCCC3333")
	ctx := context.Background()

	found, err := service.Search(ctx, "u3", "Ali", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Friend code lookup is exact and case-insensitive on input.
	found, err = service.Search(ctx, "u3", "cccc3333", 0)
	require.NoError(t, err)
	require.Len(t, found, 0) // the caller is excluded from results

	found, err = service.Search(ctx, "u1", "cccc3333", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domainuser.ID("u3"), found[0].ID)
}

func TestSearchExcludesCallerAndBlankQuery(t *testing.T) {
	service, factory := newUsersEnv(t)
	seed(t, factory, "u1", "Alice", "AAAA1111")
	ctx := context.Background()

	found, err := service.Search(ctx, "u1", "Alice", 0)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = service.Search(ctx, "u1", "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateProfileOverwritesOnlyProvidedFields(t *testing.T) {
	service, factory := newUsersEnv(t)
	seed(t, factory, "u1", "Alice", "AAAA1111")
	ctx := context.Background()

	bio := "hello there"
	updated, err := service.UpdateProfile(ctx, "u1", domainuser.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello there", updated.Bio)
	assert.Equal(t, "Alice", updated.DisplayName)

	name := "Alice B."
	updated, err = service.UpdateProfile(ctx, "u1", domainuser.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", updated.DisplayName)
	assert.Equal(t, "hello there", updated.Bio)
}

func TestUpdateProfileUnknownUser(t *testing.T) {
	service, _ := newUsersEnv(t)
	name := "Ghost"
	_, err := service.UpdateProfile(context.Background(), "ghost", domainuser.ProfileUpdate{DisplayName: &name})
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}

func TestGet(t *testing.T) {
	service, factory := newUsersEnv(t)
	seed(t, factory, "u1", "Alice", "AAAA1111")

	u, err := service.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.DisplayName)

	_, err = service.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}
