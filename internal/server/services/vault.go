package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dropkeeper/internal/dbx"
	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/otp"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/models"
	"github.com/dmitrijs2005/dropkeeper/internal/server/repositories/repomanager"
	pquernaotp "github.com/pquerna/otp"
	"golang.org/x/sync/singleflight"
)

// ErrVaultClosed is returned by every KeyVault call after Close.
var ErrVaultClosed = errors.New("key vault closed")

// OTPState is a journalist's decrypted second-factor configuration.
type OTPState struct {
	Secret    string
	Mode      otp.Mode
	Counter   uint64
	Confirmed bool
	LastStep  int64
}

// KeyVault owns all secret material: journalist OTP secrets and source
// OpenPGP keypairs. Both are sealed at rest with the vault key.
type KeyVault struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	engine      *otp.Engine
	metrics     *metrics.Metrics
	logger      logging.Logger
	rsaBits     int

	keygen singleflight.Group

	mu  sync.RWMutex
	key []byte
}

func NewKeyVault(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger, mx *metrics.Metrics) (*KeyVault, error) {
	key, err := cfg.VaultKeyBytes()
	if err != nil {
		return nil, err
	}

	engine := otp.NewEngine(otp.Params{
		Step:      cfg.TOTPStep,
		Skew:      cfg.TOTPSkew,
		LookAhead: cfg.HOTPLookAhead,
		Digits:    pquernaotp.DigitsSix,
		Algorithm: pquernaotp.AlgorithmSHA1,
	})

	return &KeyVault{
		db:          db,
		repomanager: m,
		engine:      engine,
		metrics:     mx,
		logger:      logger.With("module", "key_vault"),
		rsaBits:     cfg.RSABits,
		key:         key,
	}, nil
}

// Engine exposes the code engine, mainly so tests can pin its clock.
func (v *KeyVault) Engine() *otp.Engine {
	return v.engine
}

// Close wipes the vault key. The vault is unusable afterwards.
func (v *KeyVault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	common.WipeByteArray(v.key)
	v.key = nil
}

func (v *KeyVault) seal(plaintext, ad []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, ErrVaultClosed
	}
	return cryptox.Seal(v.key, plaintext, ad)
}

func (v *KeyVault) open(sealed, ad []byte) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, ErrVaultClosed
	}
	return cryptox.Open(v.key, sealed, ad)
}

func otpAD(username string) []byte {
	return []byte("otp:" + username)
}

func sourceKeyAD(filesystemID string) []byte {
	return []byte("source:" + filesystemID)
}

// prepareOTP builds an enrollment, from supplied when it is not empty, and
// seals its secret for username.
func (v *KeyVault) prepareOTP(username string, mode otp.Mode, supplied string) (*otp.Enrollment, []byte, error) {
	var (
		enr *otp.Enrollment
		err error
	)
	if supplied != "" {
		enr, err = otp.EnrollmentFor(mode, username, supplied)
		if errors.Is(err, otp.ErrInvalidSecret) {
			return nil, nil, common.ErrInvalidOTPSecret
		}
	} else {
		enr, err = otp.GenerateSecret(mode, username)
	}
	if err != nil {
		return nil, nil, err
	}

	sealed, err := v.seal([]byte(enr.Secret), otpAD(username))
	if err != nil {
		return nil, nil, err
	}
	return enr, sealed, nil
}

// ProvisionOTPSecret gives username a fresh random secret. The secret stays
// unconfirmed until a code generated from it is verified.
func (v *KeyVault) ProvisionOTPSecret(ctx context.Context, username string, mode otp.Mode) (*otp.Enrollment, error) {
	return v.ResetOTPSecret(ctx, username, mode, "")
}

// ResetOTPSecret replaces the secret of username in one update, so the old
// secret stops working immediately. A non-empty supplied secret (hex or
// base32) is used instead of a random one.
func (v *KeyVault) ResetOTPSecret(ctx context.Context, username string, mode otp.Mode, supplied string) (*otp.Enrollment, error) {
	enr, sealed, err := v.prepareOTP(username, mode, supplied)
	if err != nil {
		return nil, err
	}

	if err := v.repomanager.Journalists(v.db).SetOTPSecret(ctx, username, sealed, string(enr.Mode)); err != nil {
		return nil, fmt.Errorf("error storing otp secret: %w", err)
	}

	v.logger.Info(ctx, "otp secret reset", "username", username, "mode", enr.Mode)
	return enr, nil
}

func (v *KeyVault) otpState(j *models.Journalist) (*OTPState, error) {
	if len(j.OTPSecret) == 0 {
		return nil, common.ErrKeyUnavailable
	}
	mode, err := otp.ParseMode(j.OTPMode)
	if err != nil {
		return nil, err
	}
	secret, err := v.open(j.OTPSecret, otpAD(j.UserName))
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)

	return &OTPState{
		Secret:    string(secret),
		Mode:      mode,
		Counter:   j.HOTPCounter,
		Confirmed: j.OTPConfirmed,
		LastStep:  j.LastTOTPStep,
	}, nil
}

// GetOTPSecret returns the decrypted OTP configuration of username.
func (v *KeyVault) GetOTPSecret(ctx context.Context, username string) (*OTPState, error) {
	j, err := v.repomanager.Journalists(v.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return v.otpState(j)
}

// VerifyOTP checks code for username and, on a match, persists the
// advanced HOTP counter or TOTP step with a compare-and-swap. A code that
// does not match, was already used, or loses the race to a concurrent
// login or secret reset yields common.ErrInvalidCredentials. A first
// successful verification confirms the secret.
func (v *KeyVault) VerifyOTP(ctx context.Context, username, code string) error {
	return v.verifyOTP(ctx, username, code, true)
}

// ConfirmOTP is the verify-to-activate step of enrollment. A TOTP code
// accepted here is not marked as used, so the journalist can still log in
// with it during the same step.
func (v *KeyVault) ConfirmOTP(ctx context.Context, username, code string) error {
	if err := v.verifyOTP(ctx, username, code, false); err != nil {
		return err
	}
	v.logger.Info(ctx, "otp secret confirmed", "username", username)
	return nil
}

// verifyOTP updates the stored state only while the record still holds
// the sealed secret the code was checked against.
func (v *KeyVault) verifyOTP(ctx context.Context, username, code string, consumeStep bool) error {
	repo := v.repomanager.Journalists(v.db)

	j, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return err
	}
	st, err := v.otpState(j)
	if err != nil {
		if errors.Is(err, common.ErrKeyUnavailable) {
			return common.ErrInvalidCredentials
		}
		return err
	}

	res, err := v.engine.VerifyNow(st.Secret, st.Mode, code, st.Counter)
	if err != nil {
		return err
	}
	if !res.Accepted {
		return common.ErrInvalidCredentials
	}

	switch st.Mode {
	case otp.ModeHOTP:
		err = repo.AdvanceHOTPCounter(ctx, username, j.OTPSecret, st.Counter, res.NewCounter)
	case otp.ModeTOTP:
		if res.Step <= st.LastStep {
			return common.ErrInvalidCredentials
		}
		if consumeStep {
			err = repo.AdvanceTOTPStep(ctx, username, j.OTPSecret, res.Step)
		}
	}
	if err == nil && !st.Confirmed {
		err = repo.ConfirmOTP(ctx, username, j.OTPSecret)
	}
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return common.ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// CreateSourceKeypair returns the armored public key for filesystemID,
// generating and storing a keypair only if none exists. Concurrent callers
// for the same id all get the key of whichever insert landed first.
func (v *KeyVault) CreateSourceKeypair(ctx context.Context, filesystemID string) (string, error) {
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return "", err
	}

	repo := v.repomanager.SourceKeys(v.db)
	existing, err := repo.Get(ctx, filesystemID)
	if err == nil {
		return existing.Public, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	pub, err, _ := v.keygen.Do(filesystemID, func() (interface{}, error) {
		return v.generateSourceKeypair(ctx, filesystemID)
	})
	if err != nil {
		return "", err
	}
	return pub.(string), nil
}

func (v *KeyVault) generateSourceKeypair(ctx context.Context, filesystemID string) (string, error) {
	kp, err := cryptox.GenerateKeypair(v.rsaBits)
	if err != nil {
		return "", fmt.Errorf("error generating keypair: %w", err)
	}
	defer common.WipeByteArray(kp.Private)

	sealed, err := v.seal(kp.Private, sourceKeyAD(filesystemID))
	if err != nil {
		return "", err
	}

	repo := v.repomanager.SourceKeys(v.db)
	inserted, err := repo.Create(ctx, &models.SourceKey{
		FilesystemID: filesystemID,
		Public:       kp.Public,
		Private:      sealed,
	})
	if err != nil {
		return "", fmt.Errorf("error storing keypair: %w", err)
	}
	if inserted {
		v.logger.Info(ctx, "source keypair created", "filesystem_id", filesystemID)
		return kp.Public, nil
	}

	// another process inserted first
	winner, err := repo.Get(ctx, filesystemID)
	if err != nil {
		return "", err
	}
	return winner.Public, nil
}

// GetPublicKey returns the armored public key or common.ErrKeyUnavailable.
func (v *KeyVault) GetPublicKey(ctx context.Context, filesystemID string) (string, error) {
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return "", err
	}
	k, err := v.repomanager.SourceKeys(v.db).Get(ctx, filesystemID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrKeyUnavailable
		}
		return "", err
	}
	return k.Public, nil
}

// GetPrivateKey returns the parsed private key, or common.ErrKeyUnavailable
// once the keypair has been deleted.
func (v *KeyVault) GetPrivateKey(ctx context.Context, filesystemID string) (openpgp.EntityList, error) {
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return nil, err
	}

	k, err := v.repomanager.SourceKeys(v.db).Get(ctx, filesystemID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrKeyUnavailable
		}
		return nil, err
	}
	defer common.WipeByteArray(k.Private)

	raw, err := v.open(k.Private, sourceKeyAD(filesystemID))
	if err != nil {
		return nil, fmt.Errorf("error opening private key: %w", err)
	}
	defer common.WipeByteArray(raw)

	return cryptox.ReadPrivateKey(raw)
}

// DeleteSourceKeypair irreversibly destroys the keypair: the sealed
// private key is overwritten and the row removed in one transaction.
// Deleting an absent keypair succeeds.
func (v *KeyVault) DeleteSourceKeypair(ctx context.Context, filesystemID string) error {
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return err
	}

	var deleted bool
	err := v.repomanager.WithTx(ctx, v.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := v.repomanager.SourceKeys(tx)
		if err := repo.Wipe(ctx, filesystemID); err != nil {
			return err
		}
		var err error
		deleted, err = repo.Delete(ctx, filesystemID)
		return err
	})
	if err != nil {
		return fmt.Errorf("error deleting keypair: %w", err)
	}

	if deleted {
		v.metrics.SourceKeyDeleted()
		v.logger.Info(ctx, "source keypair deleted", "filesystem_id", filesystemID)
	}
	return nil
}
