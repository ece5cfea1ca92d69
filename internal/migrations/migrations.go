package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var embedMigrations embed.FS

const migrationsDir = "sql"

func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.SugaredLogger) error {
	fsys, err := fs.Sub(embedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	for _, r := range results {
		logger.Debugw("Migration applied", "source", r.Source.Path, "duration", r.Duration)
	}
	logger.Debug("Database migrations applied successfully!")
	return nil
}
