// Package internal holds helpers that are private to the feedback module.
//
// # Sub-packages
//
//   - api: chi router and JSON handlers for the /sessions and /capsessions routes
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - logger: zerolog setup and request logging middleware
//   - rate: create rate limiting (Redis fixed window, in-memory fallback)
//
// # What this package must NOT do
//
//   - Export types that appear in the public feedback API.
//   - Be imported by any package outside the feedback module.
package internal
