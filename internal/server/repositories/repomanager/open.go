package repomanager

import (
	"context"
	"database/sql"
	"fmt"
)

// OpenPostgres connects to dsn through pgx and brings the schema up to date.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}

	return db, m, nil
}
