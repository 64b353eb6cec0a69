// Package audit implements best-effort async delivery of security events.
//
// # Components
//
//   - [Sink]: event consumer. Implementations: JSON lines, slog, Kafka, channel, no-op.
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, subject, identity, IP, metadata.
//
// Sink errors are logged by the Dispatcher and swallowed. Callers never see them.
//
// # What this package must NOT do
//
//   - Decide which events to emit (the Engine and monitor do).
//   - Import authcore or any sibling internal package.
package audit
