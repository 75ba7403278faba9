package common

import (
	"fmt"
	"strings"
)

const maxIdentifierLength = 255

// ValidateFilesystemID accepts only [A-Z0-9=_-], the alphabet of derived
// filesystem ids, so an id can be used as a path or object key segment.
func ValidateFilesystemID(id string) error {
	if id == "" || len(id) > maxIdentifierLength {
		return fmt.Errorf("%w: filesystem id length", ErrInvalidIdentifier)
	}
	for _, r := range id {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '=', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: filesystem id %q", ErrInvalidIdentifier, id)
		}
	}
	return nil
}

// ValidateSubmissionRef rejects refs that could escape their source's
// directory.
func ValidateSubmissionRef(ref string) error {
	if ref == "" || len(ref) > maxIdentifierLength || ref == "." || ref == ".." ||
		strings.ContainsAny(ref, `/\`) || strings.ContainsRune(ref, 0) {
		return fmt.Errorf("%w: submission ref %q", ErrInvalidIdentifier, ref)
	}
	return nil
}

// ValidateUsername checks length bounds only.
func ValidateUsername(name string) error {
	n := len([]rune(name))
	if n < MinUsernameLength || n > MaxUsernameLength || strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: username", ErrInvalidIdentifier)
	}
	return nil
}

// ValidatePassword enforces the passphrase length policy.
func ValidatePassword(password string) error {
	n := len([]rune(password))
	if n < MinPasswordLength || n > MaxPasswordLength {
		return fmt.Errorf("%w: length must be %d..%d characters", ErrPasswordPolicy, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}
