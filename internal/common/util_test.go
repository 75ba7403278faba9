package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)

	_, err = hex.DecodeString(s)
	assert.NoError(t, err)
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestGenerateRandByteArray_Length(t *testing.T) {
	a := GenerateRandByteArray(24)
	b := GenerateRandByteArray(24)
	assert.Len(t, a, 24)
	assert.Len(t, b, 24)
	if string(a) == string(b) {
		t.Logf("warning: two GenerateRandByteArray(24) results are identical; extremely unlikely")
	}
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	WipeByteArray(nil)
}

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("get ciphertext: %w", ErrStorageUnavailable)

	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(ErrInvalidCredentials))
	assert.False(t, IsRetryable(ErrLocked))
	assert.False(t, IsRetryable(ErrKeyUnavailable))
	assert.False(t, IsRetryable(errors.New("boom")))
}
