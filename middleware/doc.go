// Package middleware exposes HTTP middleware that turns request credentials
// into a [feedback.Caller].
//
// # Middleware
//
//   - [Credentials] reads the candidate capability key (the "key" query
//     parameter or "Authorization: Key <secret>"), the admin bearer token and
//     the client IP, and stores them in the request context.
//   - [RequireAdmin] rejects requests without a valid admin credential.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into a Caller. Capability decisions
// are made by the Service through capability.Gate; RequireAdmin only
// short-circuits routes that are admin-only regardless of the session.
package middleware
