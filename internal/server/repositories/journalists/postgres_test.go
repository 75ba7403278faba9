package journalists

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	qInsert  = `(?s)^INSERT\s+INTO\s+journalists\s*\(id,\s*username,\s*password_hash,\s*is_admin,\s*otp_secret,\s*otp_mode\).*ON\s+CONFLICT\s+\(username\)\s+DO\s+NOTHING\s+RETURNING\s+created_at\s*$`
	qSelect  = `(?s)^SELECT\s+id,\s*username,.*FROM\s+journalists\s+WHERE\s+username\s*=\s*\$1\s*$`
	qReserve = `(?s)^UPDATE\s+journalists\s+SET\s+failed_attempts\s*=\s*CASE.*WHERE\s+username\s*=\s*\$1\s+AND\s+\(failed_attempts\s*<\s*\$4.*RETURNING\s+failed_attempts\s*$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(qInsert).
		WithArgs(sqlmock.AnyArg(), "alice", "hash", false, []byte("sealed"), "totp").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	got, err := repo.Create(context.Background(), &models.Journalist{
		UserName: "alice", PasswordHash: "hash", OTPSecret: []byte("sealed"), OTPMode: "totp",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	_, err := repo.Create(context.Background(), &models.Journalist{UserName: "alice"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qInsert).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Journalist{UserName: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	assert.False(t, common.IsRetryable(err))
}

func TestGetByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	failed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "is_admin", "otp_secret", "otp_mode",
		"hotp_counter", "otp_confirmed", "last_totp_step", "failed_attempts", "last_failed_at", "created_at"}).
		AddRow("j-1", "bob", "hash", true, []byte("s"), "hotp", int64(7), true, int64(0), 2, failed, failed)
	mock.ExpectQuery(qSelect).WithArgs("bob").WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "j-1", got.ID)
	assert.Equal(t, uint64(7), got.HOTPCounter)
	assert.Equal(t, 2, got.FailedAttempts)
	assert.Equal(t, failed, got.LastFailedAt)
	assert.True(t, got.IsAdmin)
}

func TestGetByUsername_NullLastFailed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "is_admin", "otp_secret", "otp_mode",
		"hotp_counter", "otp_confirmed", "last_totp_step", "failed_attempts", "last_failed_at", "created_at"}).
		AddRow("j-1", "bob", "hash", false, []byte("s"), "totp", int64(0), false, int64(0), 0, nil, time.Now())
	mock.ExpectQuery(qSelect).WithArgs("bob").WillReturnRows(rows)

	got, err := repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, got.LastFailedAt.IsZero())
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelect).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByUsername_TransientError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelect).WillReturnError(&pgconn.PgError{Code: "08006"})

	_, err := repo.GetByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, common.ErrStorageUnavailable)
}

func TestUpdatePassword(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+journalists\s+SET\s+password_hash\s*=\s*\$2\s+WHERE\s+username\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("alice", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("ghost", "new").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePassword(context.Background(), "alice", "new"))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "ghost", "new"), common.ErrorNotFound)
}

func TestSetOTPSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+journalists\s+SET\s+otp_secret\s*=\s*\$2,\s*otp_mode\s*=\s*\$3,\s*hotp_counter\s*=\s*0,.*otp_confirmed\s*=\s*FALSE`
	mock.ExpectExec(q).WithArgs("alice", []byte("sealed"), "hotp").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetOTPSecret(context.Background(), "alice", []byte("sealed"), "hotp"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmOTP_SecretReplaced(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+journalists\s+SET\s+otp_confirmed\s*=\s*TRUE\s+WHERE\s+username\s*=\s*\$1\s+AND\s+otp_secret\s*=\s*\$2`
	mock.ExpectExec(q).WithArgs("alice", []byte("sealed")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("alice", []byte("stale")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.ConfirmOTP(context.Background(), "alice", []byte("sealed")))
	assert.ErrorIs(t, repo.ConfirmOTP(context.Background(), "alice", []byte("stale")), common.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceHOTPCounter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+journalists\s+SET\s+hotp_counter\s*=\s*\$4\s+WHERE\s+username\s*=\s*\$1\s+AND\s+otp_secret\s*=\s*\$2\s+AND\s+hotp_counter\s*=\s*\$3\s*$`
	mock.ExpectExec(q).WithArgs("bob", []byte("sealed"), int64(3), int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("bob", []byte("sealed"), int64(3), int64(5)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AdvanceHOTPCounter(context.Background(), "bob", []byte("sealed"), 3, 5))
	assert.ErrorIs(t, repo.AdvanceHOTPCounter(context.Background(), "bob", []byte("sealed"), 3, 5), common.ErrConflict)
}

func TestAdvanceHOTPCounter_MustIncrease(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	assert.Error(t, repo.AdvanceHOTPCounter(context.Background(), "bob", []byte("sealed"), 5, 5))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceTOTPStep_Replay(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+journalists\s+SET\s+last_totp_step\s*=\s*\$3\s+WHERE\s+username\s*=\s*\$1\s+AND\s+otp_secret\s*=\s*\$2\s+AND\s+last_totp_step\s*<\s*\$3\s*$`
	mock.ExpectExec(q).WithArgs("alice", []byte("sealed"), int64(100)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("alice", []byte("sealed"), int64(100)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.AdvanceTOTPStep(context.Background(), "alice", []byte("sealed"), 100))
	assert.ErrorIs(t, repo.AdvanceTOTPStep(context.Background(), "alice", []byte("sealed"), 100), common.ErrConflict)
}

func TestReserveAttempt(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-time.Minute)

	mock.ExpectQuery(qReserve).WithArgs("alice", cutoff, now, 5).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(3))

	n, err := repo.ReserveAttempt(context.Background(), "alice", now, cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReserveAttempt_Locked(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(qReserve).WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}))

	_, err := repo.ReserveAttempt(context.Background(), "alice", now, now.Add(-time.Minute), 5)
	assert.ErrorIs(t, err, common.ErrLocked)
}

func TestRecordFailure_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^UPDATE\s+journalists\s+SET\s+failed_attempts`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.RecordFailure(context.Background(), "ghost", now, now.Add(-time.Minute))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestResetAttempts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+journalists\s+SET\s+failed_attempts\s*=\s*0,\s*last_failed_at\s*=\s*NULL`).
		WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ResetAttempts(context.Background(), "alice"))
}

func TestAttempts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+failed_attempts,\s*last_failed_at\s+FROM\s+journalists`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "last_failed_at"}).AddRow(4, last))

	n, at, err := repo.Attempts(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, last, at)
}
