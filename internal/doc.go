// Package internal contains helpers that are private to authcore, chiefly
// secure random token generation and token digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: YAML + environment configuration loading
//   - credstore: GORM-backed credential store adapter
//   - httpapi: chi routes over the Engine
//   - logging: slog construction and context carriers
//   - monitor: failed-login tracking and security alerts
//   - rate: shared, local and fallback rate limiters
//   - security: effective security posture report
//   - stores: Redis-backed verification tokens and alert records
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
package internal
