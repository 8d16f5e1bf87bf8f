package feedback

import "errors"

var (
	// ErrValidation wraps a bad name, question, theme, answer or body.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrForbidden is returned when a key does not grant the requested access.
	ErrForbidden = errors.New("forbidden")
	// ErrAdminRequired is returned for admin-only operations without a valid
	// admin credential. It wraps ErrForbidden.
	ErrAdminRequired = forbidden("admin credential required")
	// ErrStorage wraps backend failures.
	ErrStorage = errors.New("session storage failure")
	// ErrConflict is returned when an update lost every retry to concurrent
	// writers.
	ErrConflict = errors.New("session update conflict")
	// ErrRateLimited is returned when a client creates sessions too quickly.
	ErrRateLimited = errors.New("rate limited")
	// ErrServiceNotReady is returned by methods on a nil or closed service.
	ErrServiceNotReady = errors.New("service not initialized")
)

type forbiddenError struct {
	msg string
}

func forbidden(msg string) error { return &forbiddenError{msg: msg} }

func (e *forbiddenError) Error() string { return e.msg }

func (e *forbiddenError) Is(target error) bool { return target == ErrForbidden }
