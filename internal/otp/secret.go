package otp

import (
	"encoding/base32"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Issuer is shown by authenticator apps next to the account name.
const Issuer = "Dropkeeper"

// secretSize is the raw length of generated secrets (160 bits, the
// RFC 4226 recommendation).
const secretSize = 20

var ErrInvalidSecret = errors.New("invalid otp secret")

// Enrollment is what a journalist needs to configure an authenticator.
type Enrollment struct {
	Mode   Mode
	Secret string
	// URI is the otpauth:// provisioning URI, suitable for a QR code.
	URI string
}

// GenerateSecret creates a fresh random secret for account.
func GenerateSecret(mode Mode, account string) (*Enrollment, error) {
	return enroll(mode, account, nil)
}

// EnrollmentFor builds the enrollment for an existing base32 secret, such as
// one programmed into a hardware token.
func EnrollmentFor(mode Mode, account, secret string) (*Enrollment, error) {
	norm, err := NormalizeSecret(secret)
	if err != nil {
		return nil, err
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(norm)
	if err != nil {
		return nil, ErrInvalidSecret
	}
	defer common.WipeByteArray(raw)
	return enroll(mode, account, raw)
}

// enroll generates a key; a nil raw secret means a random one.
func enroll(mode Mode, account string, raw []byte) (*Enrollment, error) {
	switch mode {
	case ModeTOTP:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      Issuer,
			AccountName: account,
			SecretSize:  secretSize,
			Secret:      raw,
		})
		if err != nil {
			return nil, err
		}
		return &Enrollment{Mode: mode, Secret: key.Secret(), URI: key.URL()}, nil
	case ModeHOTP:
		key, err := hotp.Generate(hotp.GenerateOpts{
			Issuer:      Issuer,
			AccountName: account,
			SecretSize:  secretSize,
			Secret:      raw,
		})
		if err != nil {
			return nil, err
		}
		return &Enrollment{Mode: mode, Secret: key.Secret(), URI: key.URL()}, nil
	default:
		return nil, ErrUnknownMode
	}
}

// NormalizeSecret turns an operator-supplied secret into unpadded upper
// case base32. Hardware tokens usually print their HOTP secret as hex, so
// input made only of hex digits (spaces allowed) is decoded as hex first.
func NormalizeSecret(in string) (string, error) {
	s := strings.Join(strings.Fields(in), "")
	if s == "" {
		return "", ErrInvalidSecret
	}

	var raw []byte
	if b, err := hex.DecodeString(s); err == nil {
		raw = b
	} else {
		padded := strings.ToUpper(s)
		if n := len(padded) % 8; n != 0 {
			padded += strings.Repeat("=", 8-n)
		}
		b, err := base32.StdEncoding.DecodeString(padded)
		if err != nil {
			return "", ErrInvalidSecret
		}
		raw = b
	}
	defer common.WipeByteArray(raw)

	if len(raw) < 10 {
		return "", ErrInvalidSecret
	}

	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}
