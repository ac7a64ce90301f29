package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appchat "bchat/internal/app/chat"
	"bchat/internal/app/errbus"
	appfriends "bchat/internal/app/friends"
	"bchat/internal/app/presence"
	"bchat/internal/app/realtime"
	authsvc "bchat/internal/app/services/auth"
	"bchat/internal/app/uow"
	appusers "bchat/internal/app/users"
	"bchat/internal/infra/config"
	"bchat/internal/infra/obs"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	bus := errbus.New()
	t.Cleanup(bus.Close)

	logger := obs.NewLogger("test")
	tracker := &presence.Tracker{UoW: factory, Errors: bus}
	syncer := &realtime.Syncer{UoW: factory, Notify: store, Logger: logger}
	authService := &authsvc.Service{
		UoW:       factory,
		Sessions:  memory.NewSessionStore(),
		Passwords: security.BcryptHasher{},
		Tokens:    security.RandomTokenGenerator{},
		Presence:  tracker,
		Errors:    bus,
		Logger:    logger,
	}
	usersService := &appusers.Service{UoW: factory, Errors: bus, Logger: logger}
	friendsService := &appfriends.Service{UoW: factory, Errors: bus, Logger: logger}
	directory := &appchat.Directory{UoW: factory, Errors: bus, Logger: logger}
	messageLog := &appchat.Log{UoW: factory, Errors: bus, Sync: syncer, Logger: logger}

	cfg := config.Config{Env: "test", HTTPAddr: ":0"}
	server := NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{}, Handlers{
		Auth:     AuthHandler{Service: authService, Users: usersService, Logger: logger},
		Users:    UsersHandler{Service: usersService, Logger: logger},
		Friends:  FriendsHandler{Service: friendsService, Logger: logger},
		Chat:     ChatHandler{Directory: directory, Log: messageLog, Sync: syncer, Logger: logger},
		Realtime: NewRealtimeHandler(directory, syncer, tracker, logger),
		AuthMiddleware: AuthMiddleware{
			Service: authService,
			Logger:  logger,
		}.Handle,
	})
	return server.Handler
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func register(t *testing.T, h http.Handler, email, name string) (token, id string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":        email,
		"display_name": name,
		"password":     "long enough password",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(t, rec, &resp)
	return resp.Token, resp.User.ID
}

func TestLivez(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/friends", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/v1/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginAndProfile(t *testing.T) {
	h := newTestServer(t)
	token, _ := register(t, h, "alice@example.com", "Alice")

	rec := doJSON(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Email      string `json:"email"`
		FriendCode string `json:"friend_code"`
		Status     string `json:"status"`
	}
	decode(t, rec, &me)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Len(t, me.FriendCode, 8)
	assert.Equal(t, "I'm new here!", me.Status)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/auth/me", token, map[string]string{
		"bio": "just here to chat",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		Bio string `json:"bio"`
	}
	decode(t, rec, &updated)
	assert.Equal(t, "just here to chat", updated.Bio)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFriendFlow(t *testing.T) {
	h := newTestServer(t)
	aliceToken, aliceID := register(t, h, "alice@example.com", "Alice")
	bobToken, bobID := register(t, h, "bob@example.com", "Bob")

	// Alice finds Bob by name.
	rec := doJSON(t, h, http.MethodGet, "/api/v1/users/search?q=Bo", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var search struct {
		Items []struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"items"`
	}
	decode(t, rec, &search)
	require.Len(t, search.Items, 1)
	assert.Equal(t, bobID, search.Items[0].ID)
	assert.Empty(t, search.Items[0].Email)

	// Request and duplicate suppression.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/friends/requests", aliceToken, map[string]string{"to": bobID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/friends/requests", bobToken, map[string]string{"to": aliceID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Bob sees the incoming request with Alice's snapshot.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/friends/requests", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incoming struct {
		Items []struct {
			ID       string `json:"id"`
			FromName string `json:"from_name"`
		} `json:"items"`
	}
	decode(t, rec, &incoming)
	require.Len(t, incoming.Items, 1)
	assert.Equal(t, "Alice", incoming.Items[0].FromName)

	// Accept, then both sides list each other.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/friends/requests/"+created.ID+"/respond", bobToken, map[string]bool{"accept": true})
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, token := range []string{aliceToken, bobToken} {
		rec = doJSON(t, h, http.MethodGet, "/api/v1/friends", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var friends struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		decode(t, rec, &friends)
		assert.Len(t, friends.Items, 1)
	}
}

func TestConversationAndMessageFlow(t *testing.T) {
	h := newTestServer(t)
	aliceToken, aliceID := register(t, h, "alice@example.com", "Alice")
	bobToken, bobID := register(t, h, "bob@example.com", "Bob")
	intruderToken, _ := register(t, h, "eve@example.com", "Eve")

	// Start is idempotent: both sides land on the same record.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/conversations", aliceToken, map[string]string{"with": bobID})
	require.Equal(t, http.StatusOK, rec.Code)
	var conversation struct {
		ID string `json:"id"`
	}
	decode(t, rec, &conversation)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/conversations", bobToken, map[string]string{"with": aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		ID string `json:"id"`
	}
	decode(t, rec, &second)
	assert.Equal(t, conversation.ID, second.ID)

	// Send and read.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conversation.ID+"/messages", aliceToken, map[string]string{"text": "hello bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var message struct {
		ID string `json:"id"`
	}
	decode(t, rec, &message)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conversation.ID+"/messages", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messages struct {
		Items []struct {
			Text string `json:"text"`
		} `json:"items"`
	}
	decode(t, rec, &messages)
	require.Len(t, messages.Items, 1)
	assert.Equal(t, "hello bob", messages.Items[0].Text)

	// The list view carries the summary.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []struct {
			ID          string `json:"id"`
			LastMessage *struct {
				Text string `json:"text"`
			} `json:"last_message"`
		} `json:"items"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Items, 1)
	require.NotNil(t, list.Items[0].LastMessage)
	assert.Equal(t, "hello bob", list.Items[0].LastMessage.Text)

	// Outsiders cannot read, send or delete.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conversation.ID+"/messages", intruderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/conversations/"+conversation.ID+"/messages", intruderToken, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Only the sender deletes; the tombstone replaces the text.
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/conversations/"+conversation.ID+"/messages/"+message.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = doJSON(t, h, http.MethodDelete, "/api/v1/conversations/"+conversation.ID+"/messages/"+message.ID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/conversations/"+conversation.ID+"/messages", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &messages)
	require.Len(t, messages.Items, 1)
	assert.Equal(t, "This message was deleted", messages.Items[0].Text)
}

func TestStartConversationValidation(t *testing.T) {
	h := newTestServer(t)
	aliceToken, aliceID := register(t, h, "alice@example.com", "Alice")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/conversations", aliceToken, map[string]string{"with": aliceID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/conversations", aliceToken, map[string]string{"with": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// Transient store failures are retryable and must not read as server bugs.
func TestStorageUnavailableRendersAs503(t *testing.T) {
	err := fmt.Errorf("get conversations/alice_bob: %w", uow.ErrStorageUnavailable)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	ChatHandler{}.respondError(c, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	FriendsHandler{}.respondError(c, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	AuthHandler{}.respondAuthError(c, err)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
