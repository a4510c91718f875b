package chat

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/neurochat/pkg/chat/reveal"
)

// HistoryAPI loads the full message history of a session.
type HistoryAPI interface {
	SessionHistory(ctx context.Context, id string) ([]Message, error)
}

// Identity is the authenticated user, used for display only.
type Identity struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// IdentityAPI fetches the authenticated user.
type IdentityAPI interface {
	Me(ctx context.Context) (Identity, error)
}

// API is the full remote surface the coordinator consumes.
type API interface {
	SessionAPI
	HistoryAPI
	IdentityAPI
	Exchanger
}

// Coordinator wires the session store, the timeline, the send pipeline and
// the reveal animator together and exposes the operations the presentation
// layer drives. It exclusively owns the active session id; the timeline is
// swapped wholesale on session switches so messages never bleed across
// sessions. State changes are announced on an in-process watermill pub/sub
// rather than through any rendering concern.
type Coordinator struct {
	api      API
	store    *SessionStore
	pipeline *SendPipeline
	animator *reveal.Animator
	pubsub   *gochannel.GoChannel

	mu           sync.Mutex
	timeline     Timeline
	activeID     string
	epoch        uint64
	loading      bool
	inFlight     bool
	activeReveal *reveal.Handle
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithExchangeTimeout bounds the remote exchange round trip.
func WithExchangeTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.pipeline = NewSendPipeline(c.api, d)
	}
}

// WithAnimator overrides the reveal cadence, mostly for tests.
func WithAnimator(a *reveal.Animator) Option {
	return func(c *Coordinator) { c.animator = a }
}

func NewCoordinator(api API, logger zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:      api,
		store:    NewSessionStore(api),
		pipeline: NewSendPipeline(api, DefaultExchangeTimeout),
		animator: &reveal.Animator{},
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 256},
			NewWatermillLogger(logger),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events subscribes to coordinator state-change events. The channel closes
// when ctx is canceled or the coordinator is closed.
func (c *Coordinator) Events(ctx context.Context) (<-chan *message.Message, error) {
	return c.pubsub.Subscribe(ctx, EventsTopic)
}

// Close shuts down the event bus.
func (c *Coordinator) Close() error {
	return c.pubsub.Close()
}

func (c *Coordinator) publish(e Event) {
	payload, err := e.Marshal()
	if err != nil {
		log.Error().Err(err).Str("kind", string(e.Kind)).Msg("marshal chat event")
		return
	}
	if err := c.pubsub.Publish(EventsTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		log.Error().Err(err).Str("kind", string(e.Kind)).Msg("publish chat event")
	}
}

// noteAuthExpiry announces expired credentials so the presentation layer can
// force re-authentication. The error itself still propagates to the caller.
func (c *Coordinator) noteAuthExpiry(err error) {
	if IsAuthError(err) {
		c.publish(Event{Kind: EventAuthExpired})
	}
}

// ActiveSession returns the active session id, empty when no session is open.
func (c *Coordinator) ActiveSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Loading reports whether a submission is between its optimistic insertion
// and its terminal state.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Messages returns a copy of the active timeline.
func (c *Coordinator) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Messages()
}

// Sessions returns the cached session set.
func (c *Coordinator) Sessions() []Session {
	return c.store.Sessions()
}

// RefreshSessions re-fetches the session set from the server.
func (c *Coordinator) RefreshSessions(ctx context.Context) ([]Session, error) {
	sessions, err := c.store.Refresh(ctx)
	if err != nil {
		c.noteAuthExpiry(err)
		return nil, err
	}
	c.publish(Event{Kind: EventSessions})
	return sessions, nil
}

// Identity fetches the authenticated user for display.
func (c *Coordinator) Identity(ctx context.Context) (Identity, error) {
	ident, err := c.api.Me(ctx)
	if err != nil {
		c.noteAuthExpiry(err)
		return Identity{}, errors.Wrap(err, "fetch identity")
	}
	return ident, nil
}

// detachRevealLocked takes ownership of the running reveal handle, if any.
// The caller must cancel it after releasing the coordinator lock; reveal
// callbacks re-acquire the lock, so canceling under it would deadlock.
func (c *Coordinator) detachRevealLocked() *reveal.Handle {
	h := c.activeReveal
	c.activeReveal = nil
	return h
}

// OpenSession makes id the active session and replaces the timeline with its
// history. Any running reveal is canceled and any in-flight exchange on the
// old timeline is marked for discard on arrival.
func (c *Coordinator) OpenSession(ctx context.Context, id string) error {
	history, err := c.api.SessionHistory(ctx, id)
	if err != nil {
		c.noteAuthExpiry(err)
		return errors.Wrap(err, "load session history")
	}

	c.mu.Lock()
	prior := c.detachRevealLocked()
	c.epoch++
	c.activeID = id
	c.timeline.Load(history)
	c.mu.Unlock()

	if prior != nil {
		prior.Cancel()
	}
	c.publish(Event{Kind: EventTimeline})
	log.Debug().Str("session_id", id).Int("messages", len(history)).Msg("session opened")
	return nil
}

// CloseSession switches to the no-session state: timeline cleared, no active
// id, pending work on the old timeline discarded.
func (c *Coordinator) CloseSession() {
	c.mu.Lock()
	prior := c.detachRevealLocked()
	c.epoch++
	c.activeID = ""
	c.timeline.Clear()
	c.mu.Unlock()

	if prior != nil {
		prior.Cancel()
	}
	c.publish(Event{Kind: EventTimeline})
}

// NewSession creates an empty session on the server and opens it.
func (c *Coordinator) NewSession(ctx context.Context) (Session, error) {
	sess, err := c.store.Create(ctx)
	if err != nil {
		c.noteAuthExpiry(err)
		return Session{}, err
	}
	c.publish(Event{Kind: EventSessions})
	if err := c.OpenSession(ctx, sess.ID); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting the active session falls back to
// the no-session state; a dangling active id is never left behind.
func (c *Coordinator) DeleteSession(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		c.noteAuthExpiry(err)
		return err
	}
	c.publish(Event{Kind: EventSessions})

	if c.ActiveSession() == id {
		c.CloseSession()
	}
	return nil
}

// Submit runs a prompt through the send pipeline against the active timeline.
func (c *Coordinator) Submit(ctx context.Context, prompt string) error {
	err := c.pipeline.Submit(ctx, c, prompt)
	if err != nil {
		c.noteAuthExpiry(err)
	}
	return err
}

// BeginSend implements PipelineHost. It atomically applies the optimistic
// user echo and the typing placeholder, rejecting overlapping sends before
// any side effect.
func (c *Coordinator) BeginSend(user, placeholder Message) (uint64, string, error) {
	c.mu.Lock()
	if c.inFlight || c.timeline.HasPending() {
		c.mu.Unlock()
		return 0, "", ErrSendInFlight
	}
	if err := c.timeline.Append(user); err != nil {
		c.mu.Unlock()
		return 0, "", err
	}
	if err := c.timeline.Append(placeholder); err != nil {
		c.mu.Unlock()
		return 0, "", err
	}
	c.inFlight = true
	c.loading = true
	epoch := c.epoch
	sessionID := c.activeID
	c.mu.Unlock()

	c.publish(Event{Kind: EventTimeline})
	c.publish(Event{Kind: EventLoading, Loading: true})
	return epoch, sessionID, nil
}

// FinishSend implements PipelineHost. The loading flag clears on every path;
// the reconciliation only happens when the timeline epoch captured at submit
// time still matches, otherwise the reply is discarded.
func (c *Coordinator) FinishSend(epoch uint64, final Message, newSessionID string) (bool, error) {
	c.mu.Lock()
	c.inFlight = false
	c.loading = false

	if epoch != c.epoch {
		c.mu.Unlock()
		c.publish(Event{Kind: EventLoading, Loading: false})
		return true, nil
	}

	if err := c.timeline.ReconcileLastPending(final); err != nil {
		c.mu.Unlock()
		c.publish(Event{Kind: EventLoading, Loading: false})
		log.Error().Err(err).Msg("reconcile failed; timeline left unchanged")
		return false, err
	}

	adopted := false
	if newSessionID != "" && c.activeID == "" {
		c.activeID = newSessionID
		adopted = true
	}
	c.mu.Unlock()

	if adopted {
		c.store.Adopt(Session{ID: newSessionID})
		c.publish(Event{Kind: EventSessions})
	}
	c.publish(Event{Kind: EventTimeline})
	c.publish(Event{Kind: EventLoading, Loading: false})
	return false, nil
}

// StartReveal begins the progressive reveal of the message at index, which
// must be a freshly arrived assistant message. A reveal already running for
// another frame is canceled first: last writer wins, nothing is queued.
// Frames are delivered as EventRevealTick events; completion settles the
// message so it is never animated again.
func (c *Coordinator) StartReveal(index int) error {
	c.mu.Lock()
	msgs := c.timeline.Messages()
	if index < 0 || index >= len(msgs) {
		c.mu.Unlock()
		return &InvariantError{Msg: "reveal index out of range"}
	}
	if !msgs[index].IsNew || msgs[index].IsTyping {
		c.mu.Unlock()
		return nil
	}
	prior := c.detachRevealLocked()
	epoch := c.epoch
	text := msgs[index].Content
	c.mu.Unlock()

	if prior != nil {
		prior.Cancel()
	}

	onTick := func(prefix string, cursor bool) {
		c.mu.Lock()
		stale := epoch != c.epoch
		c.mu.Unlock()
		if stale {
			return
		}
		c.publish(Event{Kind: EventRevealTick, Index: index, Prefix: prefix, Cursor: cursor})
	}
	onComplete := func() {
		c.mu.Lock()
		stale := epoch != c.epoch
		if !stale {
			c.timeline.SettleReveal(index)
		}
		c.mu.Unlock()
		if stale {
			return
		}
		c.publish(Event{Kind: EventRevealDone, Index: index})
	}

	h := c.animator.Start(text, onTick, onComplete)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		h.Cancel()
		return nil
	}
	c.activeReveal = h
	c.mu.Unlock()
	return nil
}
