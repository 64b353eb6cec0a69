// Package rate implements the admission limiter used by every authentication
// entry point.
//
// # Window semantics
//
// Fixed-window counters per (scope, key): INCR, with PEXPIRE attached only on
// the first hit of a window. When a hit exceeds the scope's Points the bucket
// is blocked for BlockDuration (default: the remainder of the window) and every
// call inside the block is rejected with the block's remaining TTL.
//
// Blocked reads the same state without counting a hit. A bucket that has used
// every point reports as blocked before its block marker exists.
//
// Key prefixes:
//   - rl:<scope>:<key>  window counter
//   - rlb:<scope>:<key> block marker
//
// # Tiers
//
// [SharedLimiter] keeps buckets in Redis, [LocalLimiter] keeps them in process
// memory with identical semantics, and [FallbackLimiter] serves from the shared
// tier until its first error, then from the local tier until [FallbackLimiter.Recover]
// succeeds. There is no background retry.
//
// # What this package must NOT do
//
//   - Decide which scope applies to a request (the Engine does).
//   - Surface ErrStoreUnavailable through FallbackLimiter.
package rate
