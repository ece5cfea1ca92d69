package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/models"
)

// CredentialStore keeps the current credential pair in memory and writes it
// through to a durable Backend. Get never touches the backend.
type CredentialStore struct {
	// writeMu serializes writers so the backend sees updates in the same order
	// as readers do; mu only guards the snapshot.
	writeMu sync.Mutex
	mu      sync.RWMutex
	creds   models.Credentials

	backend Backend
	profile string
	log     *zap.SugaredLogger
}

func NewCredentialStore(backend Backend, profile string, log *zap.SugaredLogger) *CredentialStore {
	return &CredentialStore{
		backend: backend,
		profile: profile,
		log:     log,
	}
}

// Restore loads the persisted pair for the profile. Missing credentials are not
// an error: the store simply stays empty.
func (s *CredentialStore) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	creds, err := s.backend.Load(ctx, s.profile)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			s.log.Debugw("No stored credentials", "profile", s.profile)
			return nil
		}
		return fmt.Errorf("restore credentials: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	s.log.Debugw("Credentials restored", "profile", s.profile, "has_refresh", creds.RefreshToken != "")
	return nil
}

func (s *CredentialStore) Get() models.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

func (s *CredentialStore) AccessToken() string {
	return s.Get().AccessToken
}

func (s *CredentialStore) RefreshToken() string {
	return s.Get().RefreshToken
}

// Set replaces both tokens. The in-memory pair is updated even when the backend
// write fails; the error is returned so the caller can report it.
func (s *CredentialStore) Set(ctx context.Context, access, refresh string) error {
	creds := models.Credentials{AccessToken: access, RefreshToken: refresh}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()

	if err := s.backend.Save(ctx, s.profile, creds); err != nil {
		s.log.Errorw("Failed to persist credentials", "profile", s.profile, "error", err)
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Clear drops both tokens. Like Set, memory is cleared before the backend is
// touched so a failing backend never keeps a session alive locally.
func (s *CredentialStore) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.creds = models.Credentials{}
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.profile); err != nil {
		s.log.Errorw("Failed to delete persisted credentials", "profile", s.profile, "error", err)
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
