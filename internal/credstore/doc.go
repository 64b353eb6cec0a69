// Package credstore is the GORM implementation of authcore.CredentialStore.
//
// Rows live in a single credentials table. Email and full name are stored
// encrypted through authcore.RecordCodec; identity stays in plaintext because
// it is the lookup key. The active refresh token is stored only as its
// SHA-256 hex digest, and a NULL column means no active session.
//
// # What this package must NOT do
//
//   - Decide authentication outcomes. It persists what the Engine tells it.
//   - Read-modify-write refresh rotation. Rotation is one conditional UPDATE.
//   - Hard-delete rows. Deletion is a tombstone.
package credstore
