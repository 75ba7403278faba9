package repomanager

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/journalists"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/sourcekeys"
)

// InMemoryRepositoryManager serves every caller from the same process-local
// repositories; the db handles passed in are ignored.
type InMemoryRepositoryManager struct {
	txMu        sync.Mutex
	journalists *journalists.MemoryRepository
	sourceKeys  *sourcekeys.MemoryRepository
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Journalists(db dbx.DBTX) journalists.Repository {
	return m.journalists
}

func (m *InMemoryRepositoryManager) SourceKeys(db dbx.DBTX) sourcekeys.Repository {
	return m.sourceKeys
}

// WithTx serializes fn against other transactions. There is no rollback.
func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		journalists: journalists.NewMemoryRepository(),
		sourceKeys:  sourcekeys.NewMemoryRepository(),
	}
}
