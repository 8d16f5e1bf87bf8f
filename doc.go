// Package feedback is the session service behind capability-link feedback
// sessions: whoever holds a session's edit link can read and change its
// progress, whoever holds the view link can only read it.
//
// The package is designed for concurrent server workloads: Service methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// feedback is the public surface. It exposes [Service], [Builder], [Config]
// and the response value types. Persistence lives in session and its storage
// backends, key handling in keys and capability, patch semantics in action.
// HTTP wiring lives in internal/api and never in this package.
//
// # Request flow
//
// Every operation fetches the session, asks the capability gate whether the
// caller's key (or admin credential) authorizes it, and only then touches
// state. Patches run through [session.Store.Update], which re-checks the
// authorization against the freshly fetched record on every retry.
//
// # What this package must NOT do
//
//   - Return key digests, or raw keys outside the one-time creation and
//     rotation responses.
//   - Reveal through its errors whether an id exists to a caller who is not
//     authorized for it.
package feedback
