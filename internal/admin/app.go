// Package admin implements the operator console: provisioning journalists,
// resetting their credentials and managing source keypairs.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dropkeeper/internal/otp"
	"github.com/dmitrijs2005/dropkeeper/internal/server"
	"github.com/dmitrijs2005/dropkeeper/internal/server/config"
	"github.com/dmitrijs2005/dropkeeper/internal/server/services"
)

var errAborted = errors.New("aborted")

type App struct {
	config *config.Config
	db     *sql.DB
	auth   *services.AuthService
	vault  *services.KeyVault
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := server.NewLogger(os.Stderr, c)
	ctx := context.Background()

	db, m, err := server.OpenRepositories(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	vault, err := services.NewKeyVault(db, m, c, logger, nil)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	return &App{
		config: c,
		db:     db,
		auth:   services.NewAuthService(db, m, vault, c, logger, nil),
		vault:  vault,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Close wipes the vault key and releases the database.
func (a *App) Close() {
	a.vault.Close()
	if a.db != nil {
		a.db.Close()
	}
}

// readNewPassword asks for a password twice and checks the policy.
func (a *App) readNewPassword() (string, error) {
	pw, err := GetPassword("New password", a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)

	again, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(again)

	if !bytes.Equal(pw, again) {
		return "", errors.New("passwords do not match")
	}
	if err := common.ValidatePassword(string(pw)); err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *App) readMode() (otp.Mode, string, error) {
	answer, err := GetSimpleText(a.reader, "Second factor: (t)otp app or (h)otp hardware token? [t]", a.out)
	if err != nil {
		return "", "", err
	}
	if answer != "h" && answer != "hotp" {
		return otp.ModeTOTP, "", nil
	}
	secret, err := GetSimpleText(a.reader, "Token secret (hex or base32), empty to generate", a.out)
	if err != nil {
		return "", "", err
	}
	return otp.ModeHOTP, secret, nil
}

func (a *App) printEnrollment(enr *otp.Enrollment) {
	fmt.Fprintf(a.out, "Mode:    %s\n", enr.Mode)
	fmt.Fprintf(a.out, "Secret:  %s\n", enr.Secret)
	fmt.Fprintf(a.out, "URI:     %s\n", enr.URI)
}

// confirmCode asks for the first code from the new secret and activates it.
func (a *App) confirmCode(ctx context.Context, username string) error {
	code, err := GetSimpleText(a.reader, "Enter a code from the new token to confirm", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.VerifyEnrollment(ctx, username, code); err != nil {
		return fmt.Errorf("code not accepted: %w", err)
	}
	fmt.Fprintln(a.out, "Second factor confirmed.")
	return nil
}

func (a *App) AddJournalist(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := a.readNewPassword()
	if err != nil {
		return err
	}
	isAdmin, err := GetConfirmation(a.reader, "Administrator?", a.out)
	if err != nil {
		return err
	}
	mode, secret, err := a.readMode()
	if err != nil {
		return err
	}

	j, enr, err := a.auth.CreateJournalist(ctx, services.NewJournalist{
		Username:   username,
		Password:   password,
		IsAdmin:    isAdmin,
		Mode:       mode,
		HOTPSecret: secret,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Journalist %q added (id %s).\n", j.UserName, j.ID)
	a.printEnrollment(enr)
	return a.confirmCode(ctx, username)
}

func (a *App) ResetPassword(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := a.readNewPassword()
	if err != nil {
		return err
	}
	if err := a.auth.ChangePassword(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Password for %q changed.\n", username)
	return nil
}

func (a *App) Reset2FA(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	mode, secret, err := a.readMode()
	if err != nil {
		return err
	}
	enr, err := a.vault.ResetOTPSecret(ctx, username, mode, secret)
	if err != nil {
		return err
	}
	a.printEnrollment(enr)
	return a.confirmCode(ctx, username)
}

func (a *App) CreateSourceKey(ctx context.Context) error {
	codename, err := GetSimpleText(a.reader, "Source codename", a.out)
	if err != nil {
		return err
	}
	fsID, err := cryptox.DeriveFilesystemID(codename, []byte(a.config.FilesystemIDPepper))
	if err != nil {
		return err
	}
	pub, err := a.vault.CreateSourceKeypair(ctx, fsID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Filesystem id: %s\n%s\n", fsID, pub)
	return nil
}

func (a *App) DeleteSourceKey(ctx context.Context) error {
	fsID, err := GetSimpleText(a.reader, "Filesystem id", a.out)
	if err != nil {
		return err
	}
	ok, err := GetConfirmation(a.reader, "This destroys the key forever; submissions become unreadable. Continue?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	if err := a.vault.DeleteSourceKeypair(ctx, fsID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Keypair for %s deleted.\n", fsID)
	return nil
}
