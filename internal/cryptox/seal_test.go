package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, VaultKeySize)

	sealed, err := Seal(key, []byte("JBSWY3DPEHPK3PXP"), []byte("alice"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "JBSWY3DPEHPK3PXP")

	plain, err := Open(key, sealed, []byte("alice"))
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", string(plain))
}

func TestOpen_WrongAssociatedData(t *testing.T) {
	key := bytes.Repeat([]byte{7}, VaultKeySize)

	sealed, err := Seal(key, []byte("secret"), []byte("alice"))
	require.NoError(t, err)

	_, err = Open(key, sealed, []byte("bob"))
	assert.Error(t, err)
}

func TestOpen_WrongKey(t *testing.T) {
	sealed, err := Seal(bytes.Repeat([]byte{1}, VaultKeySize), []byte("secret"), nil)
	require.NoError(t, err)

	_, err = Open(bytes.Repeat([]byte{2}, VaultKeySize), sealed, nil)
	assert.Error(t, err)
}

func TestSeal_BadKey(t *testing.T) {
	_, err := Seal([]byte("short"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrBadVaultKey)

	_, err = Open([]byte("short"), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrBadVaultKey)
}

func TestOpen_TooShort(t *testing.T) {
	_, err := Open(bytes.Repeat([]byte{1}, VaultKeySize), []byte{1, 2}, nil)
	assert.ErrorIs(t, err, ErrSealedTooShort)
}
