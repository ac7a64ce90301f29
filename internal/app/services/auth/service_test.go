package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bchat/internal/app/presence"
	"bchat/internal/app/uow"
	domainauth "bchat/internal/domain/auth"
	domainuser "bchat/internal/domain/user"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
)

func newAuthService(t *testing.T) (*Service, memory.Factory) {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	service := &Service{
		UoW:       factory,
		Sessions:  memory.NewSessionStore(),
		Passwords: security.BcryptHasher{},
		Tokens:    security.RandomTokenGenerator{},
		Presence:  &presence.Tracker{UoW: factory},
	}
	return service, factory
}

func TestRegisterIssuesSessionAndFriendCode(t *testing.T) {
	service, _ := newAuthService(t)
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterParams{
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Password:    "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Len(t, result.User.FriendCode, 8)
	assert.Equal(t, "I'm new here!", result.User.Status)
	assert.True(t, result.User.Online)
	assert.NotEqual(t, "correct horse", result.User.PasswordHash)

	resolved, err := service.ResolveToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, resolved.ID)
}

func TestRegisterValidation(t *testing.T) {
	service, _ := newAuthService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "A", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = service.Register(ctx, RegisterParams{DisplayName: "A", Password: "long enough"})
	assert.ErrorIs(t, err, domainuser.ErrEmailRequired)

	_, err = service.Register(ctx, RegisterParams{Email: "a@b.c", Password: "long enough"})
	assert.ErrorIs(t, err, domainuser.ErrNameRequired)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	service, _ := newAuthService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "A", Password: "long enough"})
	require.NoError(t, err)
	_, err = service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "B", Password: "long enough"})
	assert.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
}

func TestLoginChecksCredentials(t *testing.T) {
	service, _ := newAuthService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "A", Password: "long enough"})
	require.NoError(t, err)

	result, err := service.Login(ctx, LoginParams{Email: "a@b.c", Password: "long enough"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = service.Login(ctx, LoginParams{Email: "a@b.c", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = service.Login(ctx, LoginParams{Email: "nobody@b.c", Password: "long enough"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutDropsSessionAndGoesOffline(t *testing.T) {
	service, factory := newAuthService(t)
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "A", Password: "long enough"})
	require.NoError(t, err)
	require.NoError(t, service.Logout(ctx, result.Token))

	_, err = service.ResolveToken(ctx, result.Token)
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)

	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	account, err := unit.Users().ByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, account.Online)

	// Logging out an unknown token is a no-op.
	assert.NoError(t, service.Logout(ctx, "missing"))
}

func TestResolveTokenExpiry(t *testing.T) {
	service, _ := newAuthService(t)
	service.SessionTTL = time.Nanosecond
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterParams{Email: "a@b.c", DisplayName: "A", Password: "long enough"})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = service.ResolveToken(ctx, result.Token)
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}
