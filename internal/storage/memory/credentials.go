package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

// CredentialRepository keeps credentials for the lifetime of the process only.
type CredentialRepository struct {
	mu    sync.RWMutex
	creds map[string]models.Credentials
	log   *zap.SugaredLogger
}

func NewCredentialRepository(log *zap.SugaredLogger) *CredentialRepository {
	return &CredentialRepository{
		creds: make(map[string]models.Credentials),
		log:   log,
	}
}

func (m *CredentialRepository) Load(_ context.Context, profile string) (models.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.creds[profile]
	if !ok {
		return models.Credentials{}, storage.ErrCredentialsNotFound
	}
	return creds, nil
}

func (m *CredentialRepository) Save(_ context.Context, profile string, creds models.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds[profile] = creds
	m.log.Debugw("Credentials saved", "profile", profile)

	return nil
}

func (m *CredentialRepository) Delete(_ context.Context, profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.creds, profile)
	m.log.Debugw("Credentials deleted", "profile", profile)

	return nil
}
