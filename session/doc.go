// Package session defines the persisted feedback session record, the storage
// backend contract, and the Store that every caller goes through.
//
// # Update protocol
//
// Backends offer unconditional writes plus a version-checked CompareAndSwap.
// Store.Update fetches a record, applies a pure Transition to a private copy,
// and writes it back only if the stored version has not moved. On a version
// mismatch it re-fetches and re-applies the transition, with bounded attempts
// and exponential backoff, before giving up with ErrConflict.
//
// Store.Save stays an unconditional overwrite for callers that accept
// last-write-wins. It still advances the version so in-flight updates notice
// it and retry on top of it.
package session
