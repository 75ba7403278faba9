package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilesystemID(t *testing.T) {
	for _, ok := range []string{"F1", "GEZDGNBVGY3TQOJQ====", "A-B_C"} {
		assert.NoError(t, ValidateFilesystemID(ok), ok)
	}
	for _, bad := range []string{"", "f1", "../x", "A/B", "A B", strings.Repeat("A", 256)} {
		assert.ErrorIs(t, ValidateFilesystemID(bad), ErrInvalidIdentifier, bad)
	}
}

func TestValidateSubmissionRef(t *testing.T) {
	assert.NoError(t, ValidateSubmissionRef("1-abc-msg.gpg"))
	for _, bad := range []string{"", ".", "..", "a/b", `a\b`, "a\x00b"} {
		assert.ErrorIs(t, ValidateSubmissionRef(bad), ErrInvalidIdentifier, bad)
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.ErrorIs(t, ValidateUsername("al"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateUsername(" alice"), ErrInvalidIdentifier)
	assert.ErrorIs(t, ValidateUsername(strings.Repeat("a", 101)), ErrInvalidIdentifier)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("correct horse battery"))
	assert.ErrorIs(t, ValidatePassword("short"), ErrPasswordPolicy)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 129)), ErrPasswordPolicy)
}
