// Package rate provides fixed-window limiters for session creation.
//
// # Window semantics
//
// A window opens on the first hit for a key and lasts Config.Window; hits
// beyond Config.MaxAttempts inside the window are rejected with
// ErrRateLimited. The Redis limiter uses INCR plus a conditional EXPIRE on the
// first hit, under the key "{prefix}:{key}". The memory limiter keeps the same
// counters in a go-cache store for single-process deployments.
package rate
