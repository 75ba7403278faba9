package models

import "time"

// SourceKey is the OpenPGP keypair of one source, addressed only by its
// filesystem id. Private is sealed with the vault key.
type SourceKey struct {
	FilesystemID string
	Public       string
	Private      []byte
	CreatedAt    time.Time
}
