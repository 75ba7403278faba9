package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/journalists"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/sourcekeys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Journalists(db dbx.DBTX) journalists.Repository
	SourceKeys(db dbx.DBTX) sourcekeys.Repository
	// WithTx runs fn atomically; repositories obtained from tx inside fn
	// take part in the same transaction.
	WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error
}
