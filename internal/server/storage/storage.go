// Package storage keeps encrypted submission blobs. Blobs are addressed by
// the source's filesystem id and a submission ref; both are validated
// before use so neither can escape the source's namespace.
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
)

// Store is the submission storage collaborator. Get returns
// common.ErrorNotFound for a missing blob and wraps I/O failures with
// common.ErrStorageUnavailable. Delete of a missing blob succeeds.
type Store interface {
	Get(ctx context.Context, filesystemID, ref string) ([]byte, error)
	Put(ctx context.Context, filesystemID, ref string, data []byte) error
	Delete(ctx context.Context, filesystemID, ref string) error
}

func validate(filesystemID, ref string) error {
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return err
	}
	return common.ValidateSubmissionRef(ref)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
}

// New builds the backend selected by cfg.SubmissionBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SubmissionBackend {
	case config.BackendS3:
		return NewS3Store(ctx, cfg)
	case config.BackendFS, "":
		return NewFSStore(cfg.StorePath)
	default:
		return nil, fmt.Errorf("unknown submission backend %q", cfg.SubmissionBackend)
	}
}
