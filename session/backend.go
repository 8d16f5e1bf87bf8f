package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by Insert when the id is already taken.
	ErrExists = errors.New("session already exists")
	// ErrVersionConflict is returned by CompareAndSwap when the stored version
	// differs from the expected one.
	ErrVersionConflict = errors.New("session version conflict")
	// ErrStorageUnavailable wraps every backend I/O failure.
	ErrStorageUnavailable = errors.New("session storage unavailable")
)

// Backend is the storage contract shared by the remote key-value and local
// file implementations. Implementations must return copies: callers may
// mutate what Fetch and List hand out.
type Backend interface {
	// Fetch returns the record for id or ErrNotFound.
	Fetch(ctx context.Context, id string) (*Session, error)
	// Insert writes a new record and registers it for List. It fails with
	// ErrExists if the id is taken.
	Insert(ctx context.Context, s *Session) error
	// Write overwrites the record at s.ID unconditionally.
	Write(ctx context.Context, s *Session) error
	// CompareAndSwap overwrites the record at s.ID only if the stored version
	// equals expected. It returns ErrVersionConflict otherwise, or ErrNotFound
	// if the record disappeared.
	CompareAndSwap(ctx context.Context, s *Session, expected int64) error
	// Delete removes the record and its index entry. Deleting a missing id is
	// not an error.
	Delete(ctx context.Context, id string) error
	// List returns every indexed record, unordered.
	List(ctx context.Context) ([]*Session, error)
	// Ping checks backend availability.
	Ping(ctx context.Context) error
}
