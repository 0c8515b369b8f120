package repository

import (
	"errors"
	"fmt"
	"path/filepath"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// ApplyMigrations runs all pending migrations from migrationsDir against
// the database. ErrNoChange is not an error: it just means the schema is
// already up to date.
func ApplyMigrations(migrationsDir, databaseURL string, logger *zap.Logger) error {
	absDir, err := filepath.Abs(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations dir: %w", err)
	}
	sourceURL := "file://" + filepath.ToSlash(absDir)

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Migrations already up to date")
			return nil
		}
		version, dirty, vErr := m.Version()
		if vErr == nil {
			logger.Error("Migration failed",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
				zap.Error(err),
			)
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Migrations applied successfully")
	return nil
}
