// Package security describes the effective security posture of a configured
// Engine, for startup logs and operator checks.
//
// # What this package must NOT do
//
//   - Carry secrets or key material.
package security
