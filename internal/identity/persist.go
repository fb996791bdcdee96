package identity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// CredentialStore keeps the session credential between runs.
type CredentialStore interface {
	Load() (string, error)
	Save(raw string) error
	Clear() error
}

// FileCredentialStore persists the credential in a single file readable only
// by the owner. A missing file means no saved sign-in.
type FileCredentialStore struct {
	path string
}

func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

func (f *FileCredentialStore) Load() (string, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (f *FileCredentialStore) Save(raw string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(raw), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileCredentialStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// memoryCredentials is used when no session file is configured.
type memoryCredentials struct{ raw string }

func (m *memoryCredentials) Load() (string, error) { return m.raw, nil }
func (m *memoryCredentials) Save(raw string) error { m.raw = raw; return nil }
func (m *memoryCredentials) Clear() error          { m.raw = ""; return nil }
