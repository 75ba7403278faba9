// Package common defines shared constants and sentinel errors used across
// the server, the admin tool and the storage layers. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("concurrent update conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Authentication outcomes. Wrong username, wrong password and wrong
	// one-time code all collapse into ErrInvalidCredentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLocked             = errors.New("account temporarily locked")

	// Key material errors. ErrKeyUnavailable is permanent.
	ErrKeyUnavailable = errors.New("key unavailable")

	// ErrStorageUnavailable marks transient storage failures; it is the only
	// error kind a caller may retry.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Validation errors.
	ErrPasswordPolicy    = errors.New("password does not meet policy")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidOTPSecret  = errors.New("invalid otp secret")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
