package journalists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/google/uuid"
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

func (r *PostgresRepository) Create(ctx context.Context, j *models.Journalist) (*models.Journalist, error) {
	query :=
		`INSERT INTO journalists (id, username, password_hash, is_admin, otp_secret, otp_mode)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (username) DO NOTHING
		 RETURNING created_at
		 `

	id := uuid.NewString()
	err := r.db.QueryRowContext(ctx, query,
		id, j.UserName, j.PasswordHash, j.IsAdmin, j.OTPSecret, j.OTPMode).Scan(&j.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAlreadyExists
		}
		return nil, dbError(err)
	}
	j.ID = id

	return j, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Journalist, error) {
	query :=
		`SELECT id, username, password_hash, is_admin, otp_secret, otp_mode, hotp_counter,
		        otp_confirmed, last_totp_step, failed_attempts, last_failed_at, created_at
		 FROM journalists
		 WHERE username = $1
		 `

	j := &models.Journalist{}
	var lastFailed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&j.ID, &j.UserName, &j.PasswordHash, &j.IsAdmin, &j.OTPSecret, &j.OTPMode, &j.HOTPCounter,
		&j.OTPConfirmed, &j.LastTOTPStep, &j.FailedAttempts, &lastFailed, &j.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, dbError(err)
	}
	if lastFailed.Valid {
		j.LastFailedAt = lastFailed.Time
	}

	return j, nil
}

// execOne runs a single-row UPDATE and maps "no row touched" to missing.
func (r *PostgresRepository) execOne(ctx context.Context, missing error, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return dbError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, username, hash string) error {
	query :=
		`UPDATE journalists SET password_hash = $2
		 WHERE username = $1
		 `
	return r.execOne(ctx, common.ErrorNotFound, query, username, hash)
}

func (r *PostgresRepository) SetOTPSecret(ctx context.Context, username string, sealed []byte, mode string) error {
	query :=
		`UPDATE journalists
		 SET otp_secret = $2, otp_mode = $3, hotp_counter = 0, last_totp_step = 0, otp_confirmed = FALSE
		 WHERE username = $1
		 `
	return r.execOne(ctx, common.ErrorNotFound, query, username, sealed, mode)
}

func (r *PostgresRepository) ConfirmOTP(ctx context.Context, username string, sealed []byte) error {
	query :=
		`UPDATE journalists SET otp_confirmed = TRUE
		 WHERE username = $1 AND otp_secret = $2
		 `
	return r.execOne(ctx, common.ErrConflict, query, username, sealed)
}

func (r *PostgresRepository) AdvanceHOTPCounter(ctx context.Context, username string, sealed []byte, from, to uint64) error {
	if to <= from {
		return fmt.Errorf("hotp counter must increase: %d -> %d", from, to)
	}
	query :=
		`UPDATE journalists SET hotp_counter = $4
		 WHERE username = $1 AND otp_secret = $2 AND hotp_counter = $3
		 `
	return r.execOne(ctx, common.ErrConflict, query, username, sealed, int64(from), int64(to))
}

func (r *PostgresRepository) AdvanceTOTPStep(ctx context.Context, username string, sealed []byte, step int64) error {
	query :=
		`UPDATE journalists SET last_totp_step = $3
		 WHERE username = $1 AND otp_secret = $2 AND last_totp_step < $3
		 `
	return r.execOne(ctx, common.ErrConflict, query, username, sealed, step)
}

func (r *PostgresRepository) ReserveAttempt(ctx context.Context, username string, now, cutoff time.Time, max int) (int, error) {
	query :=
		`UPDATE journalists
		 SET failed_attempts = CASE WHEN last_failed_at IS NULL OR last_failed_at < $2 THEN 1 ELSE failed_attempts + 1 END,
		     last_failed_at = $3
		 WHERE username = $1
		   AND (failed_attempts < $4 OR last_failed_at IS NULL OR last_failed_at < $2)
		 RETURNING failed_attempts
		 `

	var n int
	err := r.db.QueryRowContext(ctx, query, username, cutoff, now, max).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrLocked
		}
		return 0, dbError(err)
	}

	return n, nil
}

func (r *PostgresRepository) RecordFailure(ctx context.Context, username string, now, cutoff time.Time) (int, error) {
	query :=
		`UPDATE journalists
		 SET failed_attempts = CASE WHEN last_failed_at IS NULL OR last_failed_at < $2 THEN 1 ELSE failed_attempts + 1 END,
		     last_failed_at = $3
		 WHERE username = $1
		 RETURNING failed_attempts
		 `

	var n int
	err := r.db.QueryRowContext(ctx, query, username, cutoff, now).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, dbError(err)
	}

	return n, nil
}

func (r *PostgresRepository) ResetAttempts(ctx context.Context, username string) error {
	query :=
		`UPDATE journalists SET failed_attempts = 0, last_failed_at = NULL
		 WHERE username = $1
		 `
	return r.execOne(ctx, common.ErrorNotFound, query, username)
}

func (r *PostgresRepository) Attempts(ctx context.Context, username string) (int, time.Time, error) {
	query :=
		`SELECT failed_attempts, last_failed_at FROM journalists
		 WHERE username = $1
		 `

	var n int
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, query, username).Scan(&n, &last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, common.ErrorNotFound
		}
		return 0, time.Time{}, dbError(err)
	}

	return n, last.Time, nil
}
