// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/journalists"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/sourcekeys"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Journalists returns a journalists.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Journalists(db dbx.DBTX) journalists.Repository {
	return journalists.NewPostgresRepository(db)
}

// SourceKeys returns a sourcekeys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SourceKeys(db dbx.DBTX) sourcekeys.Repository {
	return sourcekeys.NewPostgresRepository(db)
}

// WithTx runs fn inside a database transaction.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, db, nil, fn)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
