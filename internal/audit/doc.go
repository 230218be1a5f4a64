// Package audit implements the append-only security event trail and its
// delivery path.
//
// # Components
//
//   - [Event]: one security-relevant occurrence with its action label,
//     optional user and trust score, client IP and agent, and timestamp.
//   - [Sink]: event consumer (store-backed, channel, JSON writer, fan-out, no-op).
//   - [Dispatcher]: synchronous or buffered async relay in front of a sink.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit or what their labels are; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Return delivery errors to the emitting caller. An audit outage is logged
//     and swallowed.
//   - Import goGuard or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
