// Package fieldcrypt encrypts and decrypts individual string fields of stored
// records (email addresses, names) with AES-256-GCM.
//
// # Format
//
// Ciphertexts are "v1." followed by base64url(nonce || sealed). Every call to
// Encrypt draws a fresh nonce, so equal plaintexts never produce equal
// ciphertexts. The AES key is derived from the configured key material with
// HKDF-SHA256; material shorter than 32 bytes is rejected at construction.
//
// # What this package must NOT do
//
//   - Fall back to a built-in development key.
//   - Log plaintexts or key material.
package fieldcrypt
