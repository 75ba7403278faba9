package repomanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_SharedAcrossHandles(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	ctx := context.Background()

	_, err := m.Journalists(nil).Create(ctx, &models.Journalist{UserName: "alice"})
	require.NoError(t, err)

	err = m.WithTx(ctx, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := m.Journalists(tx).GetByUsername(ctx, "alice")
		return err
	})
	require.NoError(t, err)
}

func TestInMemory_ReserveAttemptIsAtomic(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	ctx := context.Background()
	repo := m.Journalists(nil)
	_, err := repo.Create(ctx, &models.Journalist{UserName: "alice"})
	require.NoError(t, err)

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ReserveAttempt(ctx, "alice", now, cutoff, 5); err == nil {
				mu.Lock()
				passed++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, common.ErrLocked)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, passed)
	n, _, err := repo.Attempts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestInMemory_SourceKeyWipe(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	ctx := context.Background()
	repo := m.SourceKeys(nil)

	ok, err := repo.Create(ctx, &models.SourceKey{FilesystemID: "F1", Private: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Create(ctx, &models.SourceKey{FilesystemID: "F1", Private: []byte{9}})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Wipe(ctx, "F1"))
	k, err := repo.Get(ctx, "F1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, k.Private)

	deleted, err := repo.Delete(ctx, "F1")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = repo.Get(ctx, "F1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestInMemory_OTPUpdatesRequireSameSecret(t *testing.T) {
	m := NewInMemoryRepositoryManager()
	ctx := context.Background()
	repo := m.Journalists(nil)
	_, err := repo.Create(ctx, &models.Journalist{UserName: "bob"})
	require.NoError(t, err)
	require.NoError(t, repo.SetOTPSecret(ctx, "bob", []byte("first"), "hotp"))

	require.NoError(t, repo.AdvanceHOTPCounter(ctx, "bob", []byte("first"), 0, 1))
	require.NoError(t, repo.SetOTPSecret(ctx, "bob", []byte("second"), "hotp"))

	assert.ErrorIs(t, repo.AdvanceHOTPCounter(ctx, "bob", []byte("first"), 0, 1), common.ErrConflict)
	assert.ErrorIs(t, repo.AdvanceTOTPStep(ctx, "bob", []byte("first"), 10), common.ErrConflict)
	assert.ErrorIs(t, repo.ConfirmOTP(ctx, "bob", []byte("first")), common.ErrConflict)
	assert.ErrorIs(t, repo.ConfirmOTP(ctx, "ghost", []byte("first")), common.ErrConflict)

	j, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 0, j.HOTPCounter)
	assert.False(t, j.OTPConfirmed)

	require.NoError(t, repo.ConfirmOTP(ctx, "bob", []byte("second")))
}
