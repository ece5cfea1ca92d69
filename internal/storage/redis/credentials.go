package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

const keyPrefix = "storefront:credentials:"

// CredentialStorage stores the pair as a single JSON value so one SET replaces
// both tokens.
type CredentialStorage struct {
	client redis.Cmdable
}

func NewCredentialStorage(client redis.Cmdable) *CredentialStorage {
	return &CredentialStorage{client: client}
}

func (s *CredentialStorage) Load(ctx context.Context, profile string) (models.Credentials, error) {
	raw, err := s.client.Get(ctx, credentialsKey(profile)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Credentials{}, storage.ErrCredentialsNotFound
	} else if err != nil {
		return models.Credentials{}, fmt.Errorf("get credentials: %w", err)
	}

	var creds models.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return models.Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func (s *CredentialStorage) Save(ctx context.Context, profile string, creds models.Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	if err := s.client.Set(ctx, credentialsKey(profile), raw, 0).Err(); err != nil {
		return fmt.Errorf("set credentials: %w", err)
	}
	return nil
}

func (s *CredentialStorage) Delete(ctx context.Context, profile string) error {
	if err := s.client.Del(ctx, credentialsKey(profile)).Err(); err != nil {
		return fmt.Errorf("del credentials: %w", err)
	}
	return nil
}

func credentialsKey(profile string) string {
	return keyPrefix + profile
}
