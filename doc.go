// Package authcore is an authentication and session security core: password
// login, short-lived JWT access tokens, single-use rotating refresh tokens,
// email verification, rate limiting with a local fallback tier, failed-login
// monitoring and GDPR-style account deletion.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// [CredentialStore] and value types. Rate limiting, the security monitor,
// Redis-backed stores and audit dispatch live under internal/. Persistence of
// accounts is delegated to a [CredentialStore]; internal/credstore provides a
// GORM implementation that encrypts PII through [RecordCodec].
//
// # What this package must NOT do
//
//   - Store raw refresh or verification tokens. Only digests are persisted.
//   - Fall back to built-in keys. Missing secrets fail Build with a [*ConfigError].
//   - Return errors that distinguish unknown, locked, deleted and
//     wrong-password logins.
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// VerifyAccessToken is the hot path and performs no I/O. Login and Register
// are dominated by one Argon2id computation. Refresh is one conditional store
// update plus one Redis round-trip for admission.
package authcore
