// Package audit relays session access events to a sink without blocking the
// request path.
//
// # Components
//
//   - [Sink]: event consumer (zerolog, JSON writer, channel, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full
//     semantics.
//   - [Event]: one record of a create, update, delete, key rotation, admin
//     listing or denied access.
//
// This package does not decide which events to emit; the service does. Events
// never carry raw keys or key digests.
package audit
