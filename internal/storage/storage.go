package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rryowa/storefront/internal/models"
)

var ErrCredentialsNotFound = errors.New("credentials not found")

// Backend persists one credential pair per profile. Save must write both tokens
// in one operation so no reader sees half of an update.
type Backend interface {
	Load(ctx context.Context, profile string) (models.Credentials, error)
	Save(ctx context.Context, profile string, creds models.Credentials) error
	Delete(ctx context.Context, profile string) error
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
