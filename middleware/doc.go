// Package middleware adapts authcore.Engine to net/http.
//
// # Middleware
//
//   - [ClientContext] copies the caller address and User-Agent into the
//     request context where the Engine reads them.
//   - [RateLimit] applies the api scope to every request.
//   - [Guard] verifies the bearer access token and exposes the [authcore.Identity].
//
// Rejections are written with [WriteError], which maps Engine errors to a
// status code and a public message and sets Retry-After on 429.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from the Engine.
package middleware
