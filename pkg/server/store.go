package server

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	username   TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	password   TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	token      TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES users(username),
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL REFERENCES users(username),
	title      TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
`

// Store persists users, tokens, sessions and messages in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	s := &Store{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, errors.Wrap(err, "init schema")
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func hashPassword(pw string) string {
	// Stub-server credential check, not a production KDF.
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

// StoredUser is an account row.
type StoredUser struct {
	Username string
	Email    string
}

// CreateUser registers an account. Duplicate usernames fail.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users(username, email, password, created_at) VALUES(?,?,?,?)",
		username, email, hashPassword(password), now())
	return errors.Wrap(err, "insert user")
}

// Authenticate checks credentials and returns a fresh bearer token.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT password FROM users WHERE username=?", username).Scan(&stored)
	if err == sql.ErrNoRows || (err == nil && stored != hashPassword(password)) {
		return "", errors.New("invalid credentials")
	}
	if err != nil {
		return "", errors.Wrap(err, "look up user")
	}
	tok := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO tokens(token, username, created_at) VALUES(?,?,?)", tok, username, now()); err != nil {
		return "", errors.Wrap(err, "insert token")
	}
	return tok, nil
}

// UserByToken resolves a bearer token to its account.
func (s *Store) UserByToken(ctx context.Context, tok string) (StoredUser, error) {
	var u StoredUser
	err := s.db.QueryRowContext(ctx, `
SELECT u.username, u.email FROM tokens t JOIN users u ON u.username = t.username
WHERE t.token = ?`, tok).Scan(&u.Username, &u.Email)
	if err == sql.ErrNoRows {
		return StoredUser{}, errors.New("unknown token")
	}
	if err != nil {
		return StoredUser{}, errors.Wrap(err, "look up token")
	}
	return u, nil
}

// StoredSession is a session row.
type StoredSession struct {
	ID    string `json:"session_id"`
	Title string `json:"title"`
}

func (s *Store) CreateSession(ctx context.Context, username string) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions(id, username, created_at) VALUES(?,?,?)", id, username, now()); err != nil {
		return "", errors.Wrap(err, "insert session")
	}
	return id, nil
}

func (s *Store) ListSessions(ctx context.Context, username string) ([]StoredSession, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title FROM sessions WHERE username=? ORDER BY created_at", username)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer func() { _ = rows.Close() }()
	sessions := []StoredSession{}
	for rows.Next() {
		var sess StoredSession
		if err := rows.Scan(&sess.ID, &sess.Title); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, errors.Wrap(rows.Err(), "session rows")
}

// SessionOwner returns the owning username, or ErrNoRows-shaped error when
// the session does not exist.
func (s *Store) SessionOwner(ctx context.Context, id string) (string, error) {
	var username string
	err := s.db.QueryRowContext(ctx, "SELECT username FROM sessions WHERE id=?", id).Scan(&username)
	if err == sql.ErrNoRows {
		return "", errors.Wrapf(errSessionNotFound, "session %s", id)
	}
	return username, errors.Wrap(err, "look up session")
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id=?", id); err != nil {
		return errors.Wrap(err, "delete session messages")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id=?", id); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// StoredMessage is a message row as serialized on the wire.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Store) SaveMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages(id, session_id, role, content, created_at) VALUES(?,?,?,?,?)",
		uuid.NewString(), sessionID, role, content, now())
	return errors.Wrap(err, "insert message")
}

func (s *Store) Messages(ctx context.Context, sessionID string) ([]StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, created_at FROM messages WHERE session_id=? ORDER BY created_at", sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer func() { _ = rows.Close() }()
	msgs := []StoredMessage{}
	for rows.Next() {
		var m StoredMessage
		var createdAt string
		if err := rows.Scan(&m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	return msgs, errors.Wrap(rows.Err(), "message rows")
}

// EnsureTitle sets the session title from its first message, once.
func (s *Store) EnsureTitle(ctx context.Context, sessionID, firstMessage string) error {
	title := firstMessage
	if len([]rune(title)) > 50 {
		title = string([]rune(title)[:50])
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET title=? WHERE id=? AND title=''", title, sessionID)
	return errors.Wrap(err, "update session title")
}
