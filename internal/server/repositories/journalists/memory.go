package journalists

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. It mirrors the
// conditional updates of PostgresRepository under a single mutex.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*models.Journalist
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.Journalist)}
}

func clone(j *models.Journalist) *models.Journalist {
	c := *j
	c.OTPSecret = append([]byte(nil), j.OTPSecret...)
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, j *models.Journalist) (*models.Journalist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[j.UserName]; ok {
		return nil, common.ErrAlreadyExists
	}
	j.ID = uuid.NewString()
	j.CreatedAt = time.Now().UTC()
	r.rows[j.UserName] = clone(j)
	return j, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.Journalist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.rows[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(j), nil
}

// update applies fn to the stored row under the lock.
func (r *MemoryRepository) update(username string, fn func(j *models.Journalist) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.rows[username]
	if !ok {
		return common.ErrorNotFound
	}
	return fn(j)
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, username, hash string) error {
	return r.update(username, func(j *models.Journalist) error {
		j.PasswordHash = hash
		return nil
	})
}

func (r *MemoryRepository) SetOTPSecret(ctx context.Context, username string, sealed []byte, mode string) error {
	return r.update(username, func(j *models.Journalist) error {
		j.OTPSecret = append([]byte(nil), sealed...)
		j.OTPMode = mode
		j.HOTPCounter = 0
		j.LastTOTPStep = 0
		j.OTPConfirmed = false
		return nil
	})
}

// updateSecret is update restricted to rows still holding sealed. A
// missing row or a replaced secret yields common.ErrConflict.
func (r *MemoryRepository) updateSecret(username string, sealed []byte, fn func(j *models.Journalist) error) error {
	err := r.update(username, func(j *models.Journalist) error {
		if !bytes.Equal(j.OTPSecret, sealed) {
			return common.ErrConflict
		}
		return fn(j)
	})
	if err == common.ErrorNotFound {
		return common.ErrConflict
	}
	return err
}

func (r *MemoryRepository) ConfirmOTP(ctx context.Context, username string, sealed []byte) error {
	return r.updateSecret(username, sealed, func(j *models.Journalist) error {
		j.OTPConfirmed = true
		return nil
	})
}

func (r *MemoryRepository) AdvanceHOTPCounter(ctx context.Context, username string, sealed []byte, from, to uint64) error {
	if to <= from {
		return fmt.Errorf("hotp counter must increase: %d -> %d", from, to)
	}
	return r.updateSecret(username, sealed, func(j *models.Journalist) error {
		if j.HOTPCounter != from {
			return common.ErrConflict
		}
		j.HOTPCounter = to
		return nil
	})
}

func (r *MemoryRepository) AdvanceTOTPStep(ctx context.Context, username string, sealed []byte, step int64) error {
	return r.updateSecret(username, sealed, func(j *models.Journalist) error {
		if j.LastTOTPStep >= step {
			return common.ErrConflict
		}
		j.LastTOTPStep = step
		return nil
	})
}

func countFailure(j *models.Journalist, now, cutoff time.Time) int {
	if j.LastFailedAt.IsZero() || j.LastFailedAt.Before(cutoff) {
		j.FailedAttempts = 1
	} else {
		j.FailedAttempts++
	}
	j.LastFailedAt = now
	return j.FailedAttempts
}

func (r *MemoryRepository) ReserveAttempt(ctx context.Context, username string, now, cutoff time.Time, max int) (int, error) {
	var n int
	err := r.update(username, func(j *models.Journalist) error {
		if j.FailedAttempts >= max && !j.LastFailedAt.IsZero() && !j.LastFailedAt.Before(cutoff) {
			return common.ErrLocked
		}
		n = countFailure(j, now, cutoff)
		return nil
	})
	if err == common.ErrorNotFound {
		return 0, common.ErrLocked
	}
	return n, err
}

func (r *MemoryRepository) RecordFailure(ctx context.Context, username string, now, cutoff time.Time) (int, error) {
	var n int
	err := r.update(username, func(j *models.Journalist) error {
		n = countFailure(j, now, cutoff)
		return nil
	})
	return n, err
}

func (r *MemoryRepository) ResetAttempts(ctx context.Context, username string) error {
	return r.update(username, func(j *models.Journalist) error {
		j.FailedAttempts = 0
		j.LastFailedAt = time.Time{}
		return nil
	})
}

func (r *MemoryRepository) Attempts(ctx context.Context, username string) (int, time.Time, error) {
	var (
		n    int
		last time.Time
	)
	err := r.update(username, func(j *models.Journalist) error {
		n, last = j.FailedAttempts, j.LastFailedAt
		return nil
	})
	return n, last, err
}
