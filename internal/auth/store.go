package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// ErrNoSession is returned by Load when no session blob exists on disk.
var ErrNoSession = errors.New("no stored session")

// Store persists the single auth blob the agent holds. The blob is one JSON
// file; writes go through a temp file and rename so a crash never leaves a
// half-written session.
type Store struct {
	path string

	mu        sync.Mutex
	cached    *domain.Session
	cachedMod time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the stored session. The result is cached, but the file's
// mtime is checked on every call: the login helper writes the same blob
// from another process, and a re-login must show up without restarting
// the agent.
func (s *Store) Load() (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, statErr := os.Stat(s.path)
	if s.cached != nil && (statErr != nil || info.ModTime().Equal(s.cachedMod)) {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// Corrupt blob: treat as signed out but leave the file for inspection.
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if !session.Valid() {
		return nil, ErrNoSession
	}

	s.cached = &session
	if statErr == nil {
		s.cachedMod = info.ModTime()
	}
	return s.cached, nil
}

// Save writes the session blob atomically.
func (s *Store) Save(session *domain.Session) error {
	if !session.Valid() {
		return fmt.Errorf("refusing to save session without token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	s.cached = session
	if info, err := os.Stat(s.path); err == nil {
		s.cachedMod = info.ModTime()
	}
	return nil
}

// Clear removes the session blob. Clearing an absent blob is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.cachedMod = time.Time{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
