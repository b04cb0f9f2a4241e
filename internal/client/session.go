package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
)

// Session is the cached result of the last successful login.
type Session struct {
	User       models.AccountSummary `json:"user"`
	LoggedInAt time.Time             `json:"logged_in_at"`
}

// SessionStore persists a Session as a JSON file readable only by the owner.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// DefaultSessionPath is $HOME/.lms/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("client: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".lms", "session.json"), nil
}

func (s *SessionStore) Path() string {
	return s.path
}

// Load returns the stored session, or nil when there is none.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("client: read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("client: decode session: %w", err)
	}
	return &sess, nil
}

// Save writes sess atomically.
func (s *SessionStore) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("client: create session dir: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("client: encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("client: replace session: %w", err)
	}
	return nil
}

// Clear removes the stored session. A missing file is not an error.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: remove session: %w", err)
	}
	return nil
}
