package chat

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is a named, server-tracked conversation.
type Session struct {
	ID    string `json:"session_id"`
	Title string `json:"title,omitempty"`
}

// SessionAPI is the slice of the remote transport the session store consumes.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]Session, error)
	CreateSession(ctx context.Context) (Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// SessionStore owns the set of known sessions for the authenticated user.
// Sessions are kept in arrival order; no further ordering is guaranteed.
type SessionStore struct {
	api SessionAPI

	mu       sync.Mutex
	sessions []Session
}

func NewSessionStore(api SessionAPI) *SessionStore {
	return &SessionStore{api: api}
}

// Refresh fetches the listable set from the server and replaces the cache.
func (s *SessionStore) Refresh(ctx context.Context) ([]Session, error) {
	sessions, err := s.api.ListSessions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	return s.Sessions(), nil
}

// Sessions returns a copy of the cached session set.
func (s *SessionStore) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Create requests a new empty session and adds it to the listable set.
func (s *SessionStore) Create(ctx context.Context) (Session, error) {
	sess, err := s.api.CreateSession(ctx)
	if err != nil {
		return Session{}, errors.Wrap(err, "create session")
	}
	s.Adopt(sess)
	return sess, nil
}

// Delete removes a session. A repeat delete of an already-removed id is
// tolerated: the server's NotFound is treated as success.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	err := s.api.DeleteSession(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "delete session")
	}
	if errors.Is(err, ErrNotFound) {
		log.Debug().Str("session_id", id).Msg("delete of unknown session tolerated")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if sess.ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	return nil
}

// Adopt inserts a session that came into existence elsewhere, e.g. one the
// server created implicitly on the first message exchange. It keeps the set
// unique by id.
func (s *SessionStore) Adopt(sess Session) {
	if sess.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.sessions {
		if existing.ID == sess.ID {
			if sess.Title != "" {
				s.sessions[i].Title = sess.Title
			}
			return
		}
	}
	s.sessions = append(s.sessions, sess)
}
