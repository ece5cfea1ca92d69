package postgres

import (
	"database/sql"

	"github.com/rryowa/storefront/internal/storage"
)

// Storage is the postgres credential backend. The schema is created by
// internal/migrations.
type Storage struct {
	*CredentialRepository
}

var _ storage.Backend = (*Storage)(nil)

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		CredentialRepository: NewCredentialRepository(db),
	}
}
