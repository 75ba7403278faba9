package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
)

// VaultKeySize is the required length of the at-rest sealing key.
const VaultKeySize = 32

var (
	ErrBadVaultKey    = errors.New("vault key must be 32 bytes")
	ErrSealedTooShort = errors.New("sealed data too short")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != VaultKeySize {
		return nil, ErrBadVaultKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM under key. The random nonce is
// prepended to the returned ciphertext. ad binds the ciphertext to its
// owner (a username or filesystem id) so sealed blobs cannot be swapped
// between rows.
func Seal(key, plaintext, ad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, ad), nil
}

// Open reverses Seal.
func Open(key, sealed, ad []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrSealedTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, ad)
}
