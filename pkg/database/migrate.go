package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/cscportal/portal-backend/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies the embedded SQL migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of every embedded migration.
func (db *DB) MigrationStatus(ctx context.Context) error {
	if err := db.prepareGoose(); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db.DB.DB, "migrations")
}

// Rollback reverts the most recent migration.
func (db *DB) Rollback(ctx context.Context) error {
	if err := db.prepareGoose(); err != nil {
		return err
	}
	return goose.DownContext(ctx, db.DB.DB, "migrations")
}

func (db *DB) prepareGoose() error {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{db.logger})
	return goose.SetDialect("postgres")
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct {
	log *logger.Logger
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}
