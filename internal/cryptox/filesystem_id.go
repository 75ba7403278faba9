package cryptox

import (
	"encoding/base32"
	"errors"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters for codename hashing.
const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// DeriveFilesystemID maps a source codename to its stable pseudonymous
// identifier. The derivation is one-way: scrypt with a server-wide pepper,
// base32 encoded. Surrounding whitespace in the codename is ignored.
func DeriveFilesystemID(codename string, pepper []byte) (string, error) {
	codename = strings.Join(strings.Fields(codename), " ")
	if codename == "" {
		return "", errors.New("codename is empty")
	}
	if len(pepper) == 0 {
		return "", errors.New("pepper is empty")
	}

	key, err := scrypt.Key([]byte(codename), pepper, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}

	return base32.StdEncoding.EncodeToString(key), nil
}
