package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rryowa/storefront/internal/models"
	"github.com/rryowa/storefront/internal/storage"
)

type CredentialRepository struct {
	db storage.DBTX
}

func NewCredentialRepository(db storage.DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Load(ctx context.Context, profile string) (models.Credentials, error) {
	var creds models.Credentials
	query := `SELECT access_token, refresh_token FROM client_credentials WHERE profile = $1`
	err := r.db.QueryRowContext(ctx, query, profile).Scan(&creds.AccessToken, &creds.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Credentials{}, storage.ErrCredentialsNotFound
		}
		return models.Credentials{}, fmt.Errorf("failed to get credentials: %w", err)
	}
	return creds, nil
}

// Save upserts both tokens in one statement.
func (r *CredentialRepository) Save(ctx context.Context, profile string, creds models.Credentials) error {
	query := `INSERT INTO client_credentials (profile, access_token, refresh_token, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (profile) DO UPDATE SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, profile, creds.AccessToken, creds.RefreshToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Delete(ctx context.Context, profile string) error {
	query := `DELETE FROM client_credentials WHERE profile = $1`
	_, err := r.db.ExecContext(ctx, query, profile)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}
