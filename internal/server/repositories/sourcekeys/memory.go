package sourcekeys

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.SourceKey
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.SourceKey)}
}

func (r *MemoryRepository) Create(ctx context.Context, k *models.SourceKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[k.FilesystemID]; ok {
		return false, nil
	}
	r.rows[k.FilesystemID] = &models.SourceKey{
		FilesystemID: k.FilesystemID,
		Public:       k.Public,
		Private:      append([]byte(nil), k.Private...),
		CreatedAt:    time.Now().UTC(),
	}
	return true, nil
}

func (r *MemoryRepository) Get(ctx context.Context, filesystemID string) (*models.SourceKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.rows[filesystemID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *k
	c.Private = append([]byte(nil), k.Private...)
	return &c, nil
}

func (r *MemoryRepository) Wipe(ctx context.Context, filesystemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := r.rows[filesystemID]; ok {
		common.WipeByteArray(k.Private)
	}
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, filesystemID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[filesystemID]; !ok {
		return false, nil
	}
	delete(r.rows, filesystemID)
	return true, nil
}
