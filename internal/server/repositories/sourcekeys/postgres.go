package sourcekeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func dbError(err error) error {
	return fmt.Errorf("db error: %w", dbx.Classify(err))
}

func (r *PostgresRepository) Create(ctx context.Context, k *models.SourceKey) (bool, error) {
	query :=
		`INSERT INTO source_keys (filesystem_id, public_key, private_key)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (filesystem_id) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query, k.FilesystemID, k.Public, k.Private)
	if err != nil {
		return false, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err)
	}

	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, filesystemID string) (*models.SourceKey, error) {
	query :=
		`SELECT filesystem_id, public_key, private_key, created_at
		 FROM source_keys
		 WHERE filesystem_id = $1
		 `

	k := &models.SourceKey{}
	err := r.db.QueryRowContext(ctx, query, filesystemID).Scan(&k.FilesystemID, &k.Public, &k.Private, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}

	return k, nil
}

func (r *PostgresRepository) Wipe(ctx context.Context, filesystemID string) error {
	query :=
		`UPDATE source_keys
		 SET private_key = decode(repeat('00', octet_length(private_key)), 'hex')
		 WHERE filesystem_id = $1
		 `

	if _, err := r.db.ExecContext(ctx, query, filesystemID); err != nil {
		return dbError(err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, filesystemID string) (bool, error) {
	query := `DELETE FROM source_keys WHERE filesystem_id = $1`

	res, err := r.db.ExecContext(ctx, query, filesystemID)
	if err != nil {
		return false, dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err)
	}

	return n > 0, nil
}
