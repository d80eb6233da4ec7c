package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Migrator applies goose migrations through the application pool
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	logger zerolog.Logger
}

// NewMigrator creates a new migrator reading migrations from the root of fsys
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, logger zerolog.Logger) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(fsys)
	goose.SetLogger(gooseLogger{logger})

	return &Migrator{
		// goose works on database/sql, so wrap the pgx pool
		db:     stdlib.OpenDBFromPool(pool),
		fsys:   fsys,
		logger: logger,
	}, nil
}

// Up applies all pending migrations
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	m.logger.Info().Int64("version", version).Msg("Database migrations applied")
	return nil
}

// Version returns the current schema version
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Close releases the database/sql handle; the pool stays open
func (m *Migrator) Close() error {
	return m.db.Close()
}

// gooseLogger routes goose output through zerolog
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}
