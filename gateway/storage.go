package gateway

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys match what the mobile client persists: the bare access token
// and the serialized profile.
const (
	accessTokenKey = "accessToken"
	userDataKey    = "userData"
)

// Profile is the minimal user record cached alongside the access token.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionStore persists the local session between process runs.
type SessionStore interface {
	AccessToken() (string, error)
	SaveAccessToken(token string) error
	Profile() (*Profile, error)
	SaveProfile(p *Profile) error
	Clear() error
}

// FileStore is a SessionStore backed by a single JSON file with 0600
// permissions, suitable for CLI and desktop clients.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) AccessToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	var token string
	if raw, ok := data[accessTokenKey]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			return "", err
		}
	}
	return token, nil
}

func (s *FileStore) SaveAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(data map[string]json.RawMessage) error {
		raw, err := json.Marshal(token)
		if err != nil {
			return err
		}
		data[accessTokenKey] = raw
		return nil
	})
}

func (s *FileStore) Profile() (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return nil, err
	}
	raw, ok := data[userDataKey]
	if !ok {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *FileStore) SaveProfile(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(func(data map[string]json.RawMessage) error {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		data[userDataKey] = raw
		return nil
	})
}

// Clear wipes both keys; the caller is fully logged out afterwards.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) update(mutate func(map[string]json.RawMessage) error) error {
	data, err := s.read()
	if err != nil {
		return err
	}
	if err := mutate(data); err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, raw, 0o600)
}
