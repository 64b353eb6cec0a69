// Package stores provides Redis-backed, short-lived records for the
// authentication core: single-use email verification tokens and security
// alert records.
//
// # Design
//
// Verification tokens are never stored raw. The record key is
// HMAC-SHA256(salt, identity ":" token), so a dump of the store cannot be
// replayed. Consume runs GET and DEL in one Lua script, which makes it
// single-use per key even under concurrent callers.
//
// Alert records are JSON values with a fixed retention TTL; they are written
// by the security monitor and read only by operator tooling.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Log or expose raw tokens.
//   - Use non-constant-time comparisons for identity matching.
package stores
