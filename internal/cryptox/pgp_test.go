package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypair_EncryptDecrypt(t *testing.T) {
	kp, err := GenerateKeypair(2048)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kp.Public, "-----BEGIN PGP PUBLIC KEY BLOCK-----"))

	ciphertext, err := Encrypt(kp.Public, []byte("hello"))
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "hello")

	keys, err := ReadPrivateKey(kp.Private)
	require.NoError(t, err)

	plain, err := Decrypt(keys, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, err := GenerateKeypair(2048)
	require.NoError(t, err)
	b, err := GenerateKeypair(2048)
	require.NoError(t, err)

	ciphertext, err := Encrypt(a.Public, []byte("hello"))
	require.NoError(t, err)

	keys, err := ReadPrivateKey(b.Private)
	require.NoError(t, err)

	_, err = Decrypt(keys, ciphertext)
	assert.Error(t, err)
}

func TestDecrypt_TamperedMessage(t *testing.T) {
	kp, err := GenerateKeypair(2048)
	require.NoError(t, err)
	keys, err := ReadPrivateKey(kp.Private)
	require.NoError(t, err)

	ciphertext, err := Encrypt(kp.Public, []byte("hello"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0x01

	_, err = Decrypt(keys, ciphertext)
	assert.Error(t, err)
}

func TestGenerateKeypair_TooSmall(t *testing.T) {
	_, err := GenerateKeypair(1024)
	assert.Error(t, err)
}

func TestReadPrivateKey_Garbage(t *testing.T) {
	_, err := ReadPrivateKey([]byte("not a key"))
	assert.Error(t, err)
}

func TestEncrypt_BadPublicKey(t *testing.T) {
	_, err := Encrypt("nope", []byte("x"))
	assert.Error(t, err)
}
