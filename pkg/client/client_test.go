package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/neurochat/pkg/chat"
	"github.com/go-go-golems/neurochat/pkg/token"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, token.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := token.NewMemoryStore("tok-123")
	return New(srv.URL, tokens), tokens
}

func TestListSessionsDecodesWireShape(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chat/sessions", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]string{
				{"session_id": "s1", "title": "first chat"},
				{"session_id": "s2", "title": ""},
			},
		})
	}))

	sessions, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, chat.Session{ID: "s1", Title: "first chat"}, sessions[0])
	assert.Equal(t, "s2", sessions[1].ID)
}

func TestSessionHistoryMapsBotRoleToAssistant(t *testing.T) {
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat/session/s1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id": "s1",
			"messages": []map[string]any{
				{"role": "user", "content": "hi", "timestamp": ts},
				{"role": "bot", "content": "hello", "timestamp": ts},
			},
		})
	}))

	msgs, err := c.SessionHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Equal(t, chat.StatusSent, msgs[1].Status)
	assert.False(t, msgs[1].IsNew)
	assert.False(t, msgs[1].IsTyping)
}

func TestExchangeWireShape(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat/message", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user", body["role"])
		assert.Equal(t, "hi", body["content"])
		_, hasSession := body["session_id"]
		assert.False(t, hasSession, "empty session id is omitted")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"session_id":  "s1",
			"bot_content": "hello",
		})
	}))

	reply, err := c.Exchange(context.Background(), chat.ExchangeRequest{Role: chat.RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, chat.ExchangeReply{SessionID: "s1", Content: "hello"}, reply)
}

func TestUnauthorizedBecomesAuthError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	_, err := c.ListSessions(context.Background())
	require.Error(t, err)
	assert.True(t, chat.IsAuthError(err))
}

func TestMissingTokenBecomesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the server without a token")
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, token.NewMemoryStore(""))
	_, err := c.ListSessions(context.Background())
	require.Error(t, err)
	assert.True(t, chat.IsAuthError(err))
}

func TestNotFoundMapsToErrNotFound(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	err := c.DeleteSession(context.Background(), "missing")
	require.ErrorIs(t, err, chat.ErrNotFound)
}

func TestServerErrorBecomesTransportError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"database on fire"}`, http.StatusInternalServerError)
	}))
	_, err := c.ListSessions(context.Background())
	require.Error(t, err)
	assert.True(t, chat.IsTransportError(err))
	assert.Contains(t, err.Error(), "database on fire")
}

func TestTimeoutBecomesTransportError(t *testing.T) {
	block := make(chan struct{})
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	// Registered after newTestClient so this runs before srv.Close in the
	// LIFO cleanup order; otherwise Close waits forever on the blocked handler.
	t.Cleanup(func() { close(block) })
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListSessions(ctx)
	require.Error(t, err)
	assert.True(t, chat.IsTransportError(err))
}

func TestLoginStoresToken(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ivan", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "fresh-token",
			"token_type":   "bearer",
		})
	}))

	require.NoError(t, c.Login(context.Background(), "ivan", "secret"))
	tok, err := tokens.Get()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok)
}

func TestLoginRejectionIsAuthError(t *testing.T) {
	c, tokens := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	err := c.Login(context.Background(), "ivan", "wrong")
	require.Error(t, err)
	assert.True(t, chat.IsAuthError(err))

	// the previous token survives a failed login
	tok, err := tokens.Get()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestRegisterSendsJSONBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ivan", body["username"])
		assert.Equal(t, "ivan@example.com", body["email"])
		assert.Equal(t, "secret", body["password"])
		w.WriteHeader(http.StatusOK)
	}))
	require.NoError(t, c.Register(context.Background(), "ivan", "ivan@example.com", "secret"))
}

func TestMeDecodesIdentity(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"username": "ivan",
			"email":    "ivan@example.com",
		})
	}))
	ident, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chat.Identity{Username: "ivan", Email: "ivan@example.com"}, ident)
}
