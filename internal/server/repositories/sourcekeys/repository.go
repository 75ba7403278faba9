// Package sourcekeys stores per-source OpenPGP keypairs keyed by filesystem id.
package sourcekeys

import (
	"context"

	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts k unless a key for the same filesystem id exists.
	// It reports whether this call inserted the row.
	Create(ctx context.Context, k *models.SourceKey) (bool, error)
	Get(ctx context.Context, filesystemID string) (*models.SourceKey, error)
	// Wipe overwrites the stored private key in place before deletion.
	Wipe(ctx context.Context, filesystemID string) error
	// Delete removes the row; a missing row is not an error.
	Delete(ctx context.Context, filesystemID string) (bool, error)
}
