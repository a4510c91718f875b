// Package token stores the opaque bearer credential the transport attaches
// to every request. The credential is a black box here: present or absent,
// valid or rejected by the server.
package token

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrNoToken is returned by Get when no credential is stored.
var ErrNoToken = errors.New("no token stored")

// Store is the injected token gate: read by the transport, written by login,
// cleared by logout.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// FileStore persists the token in a mode-0600 file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath places the token under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(dir, "neurochat", "token"), nil
}

func (s *FileStore) Get() (string, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", errors.Wrap(err, "read token file")
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

func (s *FileStore) Set(token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "write token file")
	}
	return nil
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

// MemoryStore keeps the token in memory, for tests and the dev loop.
type MemoryStore struct {
	mu  sync.Mutex
	tok string
}

func NewMemoryStore(tok string) *MemoryStore {
	return &MemoryStore{tok: tok}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == "" {
		return "", ErrNoToken
	}
	return s.tok, nil
}

func (s *MemoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = token
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = ""
	return nil
}
