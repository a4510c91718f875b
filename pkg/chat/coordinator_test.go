package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/neurochat/pkg/chat/reveal"
)

// fakeAPI is an in-memory stand-in for the remote transport.
type fakeAPI struct {
	mu       sync.Mutex
	sessions []Session
	history  map[string][]Message
	nextID   string

	exchangeFn func(req ExchangeRequest) (ExchangeReply, error)

	listErr    error
	historyErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{history: map[string][]Message{}, nextID: "s1"}
}

func (f *fakeAPI) ListSessions(context.Context) ([]Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Session, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeAPI) CreateSession(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := Session{ID: f.nextID}
	f.sessions = append(f.sessions, sess)
	f.history[sess.ID] = nil
	return sess, nil
}

func (f *fakeAPI) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sessions {
		if s.ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			delete(f.history, id)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeAPI) SessionHistory(_ context.Context, id string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[id], nil
}

func (f *fakeAPI) Me(context.Context) (Identity, error) {
	return Identity{Username: "ivan", Email: "ivan@example.com"}, nil
}

func (f *fakeAPI) Exchange(_ context.Context, req ExchangeRequest) (ExchangeReply, error) {
	f.mu.Lock()
	fn := f.exchangeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return ExchangeReply{SessionID: "s1", Content: "hello"}, nil
}

func newTestCoordinator(t *testing.T, api API) *Coordinator {
	t.Helper()
	c := NewCoordinator(api, zerolog.Nop(),
		WithAnimator(&reveal.Animator{
			CharInterval:  time.Millisecond,
			BlinkInterval: 2 * time.Millisecond,
		}),
	)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSubmitWithNoActiveSessionAdoptsReturnedSession(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(t, api)

	require.NoError(t, c.Submit(context.Background(), "hi"))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.True(t, msgs[1].IsNew)

	assert.Equal(t, "s1", c.ActiveSession())
	assert.False(t, c.Loading())

	ids := []string{}
	for _, s := range c.Sessions() {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "s1")
}

func TestSubmitFailureEndsWithErrorMessage(t *testing.T) {
	api := newFakeAPI()
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		return ExchangeReply{}, &TransportError{Cause: errors.New("boom")}
	}
	c := newTestCoordinator(t, api)

	err := c.Submit(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, StatusError, msgs[1].Status)
	assert.Equal(t, FailureText, msgs[1].Content)
	assert.True(t, msgs[1].IsNew)
	assert.False(t, c.Loading())
	assert.Equal(t, "", c.ActiveSession())
}

func TestOverlappingSubmitIsRejected(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		once.Do(func() { close(started) })
		<-release
		return ExchangeReply{SessionID: "s1", Content: "hello"}, nil
	}
	c := newTestCoordinator(t, api)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "first") }()
	<-started

	assert.True(t, c.Loading())
	err := c.Submit(context.Background(), "second")
	require.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.Loading())

	// only the first prompt and its reply are on the timeline
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
}

func TestPlaceholderUniqueAfterEveryStep(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	started := make(chan struct{})
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		close(started)
		<-release
		return ExchangeReply{SessionID: "s1", Content: "hello"}, nil
	}
	c := newTestCoordinator(t, api)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "hi") }()
	<-started

	pending := 0
	for _, m := range c.Messages() {
		if m.IsTyping {
			pending++
		}
	}
	assert.Equal(t, 1, pending)

	close(release)
	require.NoError(t, <-done)
	for _, m := range c.Messages() {
		assert.False(t, m.IsTyping)
	}
}

func TestSessionSwitchDiscardsLateReply(t *testing.T) {
	api := newFakeAPI()
	api.sessions = []Session{{ID: "old"}, {ID: "new", Title: "second"}}
	api.history["old"] = nil
	api.history["new"] = []Message{
		{Role: RoleUser, Content: "earlier", Status: StatusSent},
	}

	release := make(chan struct{})
	started := make(chan struct{})
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		close(started)
		<-release
		return ExchangeReply{SessionID: "old", Content: "late"}, nil
	}
	c := newTestCoordinator(t, api)
	require.NoError(t, c.OpenSession(context.Background(), "old"))

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "hi") }()
	<-started

	// switch away while the reply is outstanding
	require.NoError(t, c.OpenSession(context.Background(), "new"))
	close(release)
	require.NoError(t, <-done)

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "earlier", msgs[0].Content)
	assert.Equal(t, "new", c.ActiveSession())
	assert.False(t, c.Loading())
	for _, m := range msgs {
		assert.NotEqual(t, "late", m.Content)
	}
}

func TestDeleteActiveSessionFallsBackToNoSession(t *testing.T) {
	api := newFakeAPI()
	api.sessions = []Session{{ID: "s1"}}
	api.history["s1"] = []Message{{Role: RoleUser, Content: "hi", Status: StatusSent}}
	c := newTestCoordinator(t, api)

	require.NoError(t, c.OpenSession(context.Background(), "s1"))
	require.Len(t, c.Messages(), 1)

	require.NoError(t, c.DeleteSession(context.Background(), "s1"))
	assert.Equal(t, "", c.ActiveSession())
	assert.Empty(t, c.Messages())
}

func TestDeleteIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.sessions = []Session{{ID: "s1"}}
	c := newTestCoordinator(t, api)
	_, err := c.RefreshSessions(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.DeleteSession(context.Background(), "s1"))
	// the server now answers NotFound; the second delete still succeeds
	require.NoError(t, c.DeleteSession(context.Background(), "s1"))
	assert.Empty(t, c.Sessions())
}

func TestEmptySubmitTouchesNothing(t *testing.T) {
	api := newFakeAPI()
	calls := 0
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		calls++
		return ExchangeReply{}, nil
	}
	c := newTestCoordinator(t, api)

	err := c.Submit(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, 0, calls)
	assert.Empty(t, c.Messages())
	assert.False(t, c.Loading())
}

func TestAuthErrorPublishesAuthExpired(t *testing.T) {
	api := newFakeAPI()
	api.exchangeFn = func(ExchangeRequest) (ExchangeReply, error) {
		return ExchangeReply{}, &AuthError{Cause: errors.New("expired token")}
	}
	c := newTestCoordinator(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.Events(ctx)
	require.NoError(t, err)

	err = c.Submit(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-events:
			ev, err := EventFromMessage(msg)
			msg.Ack()
			require.NoError(t, err)
			if ev.Kind == EventAuthExpired {
				return
			}
		case <-deadline:
			t.Fatal("no auth.expired event received")
		}
	}
}

func TestStartRevealSettlesMessage(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(t, api)
	require.NoError(t, c.Submit(context.Background(), "hi"))

	require.NoError(t, c.StartReveal(1))
	require.Eventually(t, func() bool {
		return !c.Messages()[1].IsNew
	}, 2*time.Second, 5*time.Millisecond)

	// a settled message is never animated again
	require.NoError(t, c.StartReveal(1))
	assert.False(t, c.Messages()[1].IsNew)
}

func TestSessionSwitchCancelsReveal(t *testing.T) {
	api := newFakeAPI()
	api.sessions = []Session{{ID: "s2"}}
	api.history["s2"] = nil
	// slow the reveal down enough to switch away mid-animation
	c := NewCoordinator(api, zerolog.Nop(), WithAnimator(&reveal.Animator{
		CharInterval:  50 * time.Millisecond,
		BlinkInterval: 100 * time.Millisecond,
	}))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Submit(context.Background(), "hi"))
	require.NoError(t, c.StartReveal(1))

	require.NoError(t, c.OpenSession(context.Background(), "s2"))

	// the old reveal must not settle anything in the new timeline
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, c.Messages())
	assert.Equal(t, "s2", c.ActiveSession())
}

func TestRevealOutOfRangeIsInvariantError(t *testing.T) {
	api := newFakeAPI()
	c := newTestCoordinator(t, api)
	err := c.StartReveal(3)
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))
}
