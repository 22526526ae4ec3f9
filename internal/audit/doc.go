// Package audit delivers session lifecycle events (login, refresh, forced
// logout, upgrade) to a pluggable sink without blocking the caller.
//
// # Components
//
//   - [Sink] receives events (channel, JSON lines, zerolog, no-op).
//   - [Dispatcher] is a buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event] is one record, identified by a ULID.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the client does.
//
// # What this package must NOT do
//
//   - Record credentials.
//   - Import the client package or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
