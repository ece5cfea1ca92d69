package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

type credentialsFile struct {
	Profiles map[string]models.Credentials `json:"profiles"`
}

// CredentialStorage keeps every profile in one JSON document. Writes go to a
// temp file that is renamed over the original, so a crash never leaves a
// half-written pair behind.
type CredentialStorage struct {
	mu   sync.Mutex
	path string
}

func NewCredentialStorage(path string) *CredentialStorage {
	return &CredentialStorage{path: path}
}

func (s *CredentialStorage) Load(_ context.Context, profile string) (models.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return models.Credentials{}, err
	}

	creds, ok := doc.Profiles[profile]
	if !ok {
		return models.Credentials{}, storage.ErrCredentialsNotFound
	}
	return creds, nil
}

func (s *CredentialStorage) Save(_ context.Context, profile string, creds models.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Profiles[profile] = creds

	return s.write(doc)
}

func (s *CredentialStorage) Delete(_ context.Context, profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Profiles[profile]; !ok {
		return nil
	}
	delete(doc.Profiles, profile)

	return s.write(doc)
}

func (s *CredentialStorage) read() (*credentialsFile, error) {
	doc := &credentialsFile{Profiles: make(map[string]models.Credentials)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]models.Credentials)
	}
	return doc, nil
}

func (s *CredentialStorage) write(doc *credentialsFile) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			return fmt.Errorf("rename temp file: %v; remove temp file: %w", err, removeErr)
		}
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
