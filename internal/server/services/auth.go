// Package services contains server-side business logic: the key vault,
// journalist authentication and submission access.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/otp"
	"github.com/dmitrijs2005/dropkeeper/internal/server/auth"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/dmitrijs2005/dropkeeper/internal/server/lockout"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/repomanager"
)

// NewJournalist describes an account to provision. HOTPSecret optionally
// carries a hardware token's secret (hex or base32).
type NewJournalist struct {
	Username   string
	Password   string
	IsAdmin    bool
	Mode       otp.Mode
	HOTPSecret string
}

// AuthService authenticates journalists with a password and a one-time
// code. Wrong usernames, passwords and codes all fail with
// common.ErrInvalidCredentials so callers cannot tell which factor failed.
type AuthService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	vault           *KeyVault
	tracker         *lockout.Tracker
	metrics         *metrics.Metrics
	logger          logging.Logger
	jwtSecret       []byte
	sessionValidity time.Duration
	passwordParams  cryptox.PasswordParams
}

type AuthOption func(*AuthService)

// WithTracker replaces the lockout tracker built from config.
func WithTracker(t *lockout.Tracker) AuthOption {
	return func(s *AuthService) { s.tracker = t }
}

func WithPasswordParams(p cryptox.PasswordParams) AuthOption {
	return func(s *AuthService) { s.passwordParams = p }
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, vault *KeyVault, cfg *config.Config,
	logger logging.Logger, mx *metrics.Metrics, opts ...AuthOption) *AuthService {
	s := &AuthService{
		db:          db,
		repomanager: m,
		vault:       vault,
		tracker: lockout.NewTracker(m.Journalists(db),
			lockout.WithMaxAttempts(cfg.MaxLoginAttempts),
			lockout.WithWindow(cfg.LockoutWindow)),
		metrics:         mx,
		logger:          logger.With("module", "auth_service"),
		jwtSecret:       []byte(cfg.SecretKey),
		sessionValidity: cfg.SessionValidityDuration,
		passwordParams:  cryptox.DefaultPasswordParams,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *AuthService) record(ctx context.Context, username string, outcome models.LoginOutcome) {
	s.metrics.LoginAttempt(string(outcome))
	if outcome == models.OutcomeSuccess {
		s.logger.Info(ctx, "login", "username", username, "outcome", outcome)
		return
	}
	s.logger.Warn(ctx, "login rejected", "username", username, "outcome", outcome)
}

// Login checks password and code for username and returns a session.
//
// The attempt is counted against the lockout threshold before either
// factor is checked; a locked account fails with common.ErrLocked without
// touching the counter. A successful login clears the counter.
func (s *AuthService) Login(ctx context.Context, username, password, code string) (*auth.Session, error) {
	j, err := s.repomanager.Journalists(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.BurnPasswordCheck(password)
			s.record(ctx, username, models.OutcomeUnknownUser)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.tracker.Acquire(ctx, username); err != nil {
		if errors.Is(err, common.ErrLocked) {
			s.metrics.Lockout()
			s.record(ctx, username, models.OutcomeLocked)
			return nil, common.ErrLocked
		}
		return nil, err
	}

	ok, err := cryptox.VerifyPassword(j.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		s.record(ctx, username, models.OutcomeBadPassword)
		return nil, common.ErrInvalidCredentials
	}

	if err := s.vault.VerifyOTP(ctx, username, code); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.record(ctx, username, models.OutcomeBadOTP)
		}
		return nil, err
	}

	if err := s.tracker.RecordSuccess(ctx, username); err != nil {
		return nil, err
	}

	session, err := auth.NewSession(j.ID, j.UserName, j.IsAdmin, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.record(ctx, username, models.OutcomeSuccess)
	return session, nil
}

// Authenticate turns a bearer token back into a session.
func (s *AuthService) Authenticate(token string) (*auth.Session, error) {
	return auth.ParseSession(token, s.jwtSecret)
}

// CreateJournalist provisions an account together with its second factor
// in a single insert.
func (s *AuthService) CreateJournalist(ctx context.Context, nj NewJournalist) (*models.Journalist, *otp.Enrollment, error) {
	if err := common.ValidateUsername(nj.Username); err != nil {
		return nil, nil, err
	}
	if err := common.ValidatePassword(nj.Password); err != nil {
		return nil, nil, err
	}
	mode := nj.Mode
	if mode == "" {
		mode = otp.ModeTOTP
	}
	if nj.HOTPSecret != "" && mode != otp.ModeHOTP {
		return nil, nil, fmt.Errorf("%w: a supplied secret requires hotp mode", common.ErrInvalidOTPSecret)
	}

	hash, err := cryptox.HashPassword(nj.Password, s.passwordParams)
	if err != nil {
		return nil, nil, err
	}
	enr, sealed, err := s.vault.prepareOTP(nj.Username, mode, nj.HOTPSecret)
	if err != nil {
		return nil, nil, err
	}

	j, err := s.repomanager.Journalists(s.db).Create(ctx, &models.Journalist{
		UserName:     nj.Username,
		PasswordHash: hash,
		IsAdmin:      nj.IsAdmin,
		OTPSecret:    sealed,
		OTPMode:      string(enr.Mode),
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "journalist created", "username", j.UserName, "admin", j.IsAdmin, "mode", enr.Mode)
	return j, enr, nil
}

// ChangePassword replaces the password hash of username.
func (s *AuthService) ChangePassword(ctx context.Context, username, newPassword string) error {
	if err := common.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := cryptox.HashPassword(newPassword, s.passwordParams)
	if err != nil {
		return err
	}
	if err := s.repomanager.Journalists(s.db).UpdatePassword(ctx, username, hash); err != nil {
		return err
	}
	s.logger.Info(ctx, "password changed", "username", username)
	return nil
}

// VerifyEnrollment activates a freshly provisioned secret.
func (s *AuthService) VerifyEnrollment(ctx context.Context, username, code string) error {
	return s.vault.ConfirmOTP(ctx, username, code)
}

// IsLocked reports the lockout state of username.
func (s *AuthService) IsLocked(ctx context.Context, username string) (bool, error) {
	return s.tracker.IsLocked(ctx, username)
}
