// Package journalists declares the persistence contract for journalist
// accounts and provides its PostgreSQL implementation.
package journalists

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
)

// Repository stores journalist accounts. Every mutating method is a single
// statement, so it is atomic for one account without an outer transaction.
type Repository interface {
	// Create inserts a new account and fills ID and CreatedAt.
	// A taken username yields common.ErrAlreadyExists.
	Create(ctx context.Context, j *models.Journalist) (*models.Journalist, error)
	GetByUsername(ctx context.Context, username string) (*models.Journalist, error)

	UpdatePassword(ctx context.Context, username, hash string) error

	// SetOTPSecret replaces the secret and resets the counter, the replay
	// marker and the confirmation flag.
	SetOTPSecret(ctx context.Context, username string, sealed []byte, mode string) error

	// The methods below take the sealed secret the code was checked
	// against and change nothing, returning common.ErrConflict, once the
	// stored secret differs from it.

	// ConfirmOTP marks the secret as confirmed.
	ConfirmOTP(ctx context.Context, username string, sealed []byte) error
	// AdvanceHOTPCounter moves the counter from -> to only if it still
	// equals from.
	AdvanceHOTPCounter(ctx context.Context, username string, sealed []byte, from, to uint64) error
	// AdvanceTOTPStep records step as used only if it is newer than the
	// stored one.
	AdvanceTOTPStep(ctx context.Context, username string, sealed []byte, step int64) error

	// ReserveAttempt counts an attempt unless the account already has max
	// failures newer than cutoff, in which case it returns common.ErrLocked
	// and changes nothing. Failures older than cutoff restart the count.
	ReserveAttempt(ctx context.Context, username string, now, cutoff time.Time, max int) (int, error)
	// RecordFailure counts a failure unconditionally.
	RecordFailure(ctx context.Context, username string, now, cutoff time.Time) (int, error)
	ResetAttempts(ctx context.Context, username string) error
	Attempts(ctx context.Context, username string) (int, time.Time, error)
}
