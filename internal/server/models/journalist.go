// Package models defines server-side data models persisted in the database.
package models

import "time"

// Journalist is a newsroom account allowed to read submissions.
type Journalist struct {
	ID           string
	UserName     string
	PasswordHash string
	IsAdmin      bool

	// OTPSecret is sealed with the vault key; only the key vault opens it.
	OTPSecret    []byte
	OTPMode      string
	HOTPCounter  uint64
	OTPConfirmed bool
	// LastTOTPStep is the last accepted TOTP time step, or 0.
	LastTOTPStep int64

	FailedAttempts int
	LastFailedAt   time.Time

	CreatedAt time.Time
}
