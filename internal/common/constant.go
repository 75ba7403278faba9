// Package common contains shared constants and sentinel errors used across
// dropkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// session token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Password policy bounds for journalist accounts.
const (
	MinPasswordLength = 14
	MaxPasswordLength = 128
)

// Username bounds for journalist accounts.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 100
)
