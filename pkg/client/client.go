// Package client implements the REST transport for the NeuroChat backend.
// Failures are mapped onto the chat error taxonomy: 401 and a missing token
// become AuthError, 404 becomes ErrNotFound, everything else network- or
// server-shaped becomes TransportError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/neurochat/pkg/chat"
	"github.com/go-go-golems/neurochat/pkg/token"
)

// DefaultTimeout bounds every request issued by the client.
const DefaultTimeout = 60 * time.Second

// Client talks to the backend API. It satisfies chat.API.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  token.Store
}

var _ chat.API = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func New(baseURL string, tokens token.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bearer returns the stored credential or an AuthError when absent.
func (c *Client) bearer() (string, error) {
	tok, err := c.tokens.Get()
	if err != nil {
		return "", &chat.AuthError{Cause: err}
	}
	return tok, nil
}

// doJSON issues an authenticated request and decodes the JSON response into
// out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok, err := c.bearer()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &chat.TransportError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &chat.AuthError{Cause: errors.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)}
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(chat.ErrNotFound, "%s %s", req.Method, req.URL.Path)
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &chat.TransportError{Cause: errors.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(snippet)))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &chat.TransportError{Cause: errors.Wrap(err, "decode response")}
	}
	return nil
}

// wireMessage is a message as the backend serializes it. The backend uses
// the role "bot" for assistant messages.
type wireMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (w wireMessage) toMessage() chat.Message {
	role := chat.RoleUser
	if w.Role != string(chat.RoleUser) {
		role = chat.RoleAssistant
	}
	return chat.Message{
		Role:      role,
		Content:   w.Content,
		Timestamp: w.Timestamp,
		Status:    chat.StatusSent,
	}
}

type wireSession struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// ListSessions implements chat.SessionAPI.
func (c *Client) ListSessions(ctx context.Context) ([]chat.Session, error) {
	var resp struct {
		Sessions []wireSession `json:"sessions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/sessions", nil, &resp); err != nil {
		return nil, err
	}
	sessions := make([]chat.Session, 0, len(resp.Sessions))
	for _, s := range resp.Sessions {
		sessions = append(sessions, chat.Session{ID: s.SessionID, Title: s.Title})
	}
	return sessions, nil
}

// CreateSession implements chat.SessionAPI.
func (c *Client) CreateSession(ctx context.Context) (chat.Session, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/session", struct{}{}, &resp); err != nil {
		return chat.Session{}, err
	}
	return chat.Session{ID: resp.SessionID}, nil
}

// DeleteSession implements chat.SessionAPI.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chat/session/"+url.PathEscape(id), nil, nil)
}

// SessionHistory implements chat.HistoryAPI.
func (c *Client) SessionHistory(ctx context.Context, id string) ([]chat.Message, error) {
	var resp struct {
		SessionID string        `json:"session_id"`
		Messages  []wireMessage `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/chat/session/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		msgs = append(msgs, m.toMessage())
	}
	return msgs, nil
}

// Exchange implements chat.Exchanger.
func (c *Client) Exchange(ctx context.Context, req chat.ExchangeRequest) (chat.ExchangeReply, error) {
	body := struct {
		SessionID string `json:"session_id,omitempty"`
		Role      string `json:"role"`
		Content   string `json:"content"`
	}{SessionID: req.SessionID, Role: string(req.Role), Content: req.Content}

	var resp struct {
		SessionID  string `json:"session_id"`
		BotContent string `json:"bot_content"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/message", body, &resp); err != nil {
		return chat.ExchangeReply{}, err
	}
	return chat.ExchangeReply{SessionID: resp.SessionID, Content: resp.BotContent}, nil
}

// Me implements chat.IdentityAPI.
func (c *Client) Me(ctx context.Context) (chat.Identity, error) {
	var resp struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		return chat.Identity{}, err
	}
	return chat.Identity{Username: resp.Username, Email: resp.Email}, nil
}

// Login exchanges credentials for a bearer token and persists it in the
// token store. The endpoint takes a form body, OAuth2 password style.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &chat.TransportError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return &chat.AuthError{Cause: errors.New("invalid username or password")}
	}
	if resp.StatusCode >= 400 {
		return &chat.TransportError{Cause: errors.Errorf("login: %s", resp.Status)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &chat.TransportError{Cause: errors.Wrap(err, "decode login response")}
	}
	if body.AccessToken == "" {
		return &chat.TransportError{Cause: errors.New("login returned no token")}
	}
	if err := c.tokens.Set(body.AccessToken); err != nil {
		return errors.Wrap(err, "store token")
	}
	log.Debug().Str("username", username).Msg("login succeeded")
	return nil
}

// Register creates an account. Unauthenticated.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return errors.Wrap(err, "encode register request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/register", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build register request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &chat.TransportError{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &chat.TransportError{Cause: fmt.Errorf("register: %s: %s", resp.Status, strings.TrimSpace(string(snippet)))}
	}
	return nil
}
