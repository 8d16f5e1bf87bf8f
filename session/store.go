package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
)

// ErrConflict is returned by Update when every attempt lost a race with a
// concurrent writer.
var ErrConflict = errors.New("session update conflict")

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 5 * time.Millisecond
	defaultMaxInterval     = 100 * time.Millisecond
	maxInsertAttempts      = 3
)

// Transition computes the next state of a session from the current one. It
// receives a private copy and may mutate and return it. Returning an error
// rejects the transition and nothing is written; returning (nil, nil) means
// "no change".
type Transition func(current *Session) (*Session, error)

// Options tunes a Store. Zero values select defaults.
type Options struct {
	// MaxAttempts bounds the fetch-transition-write cycles of one Update.
	MaxAttempts uint
	// InitialInterval and MaxInterval shape the backoff between attempts.
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Now overrides the clock used for createdAt/lastAccess.
	Now func() time.Time
	// NewID overrides id generation.
	NewID func() string
	// OnConflict is called for every version conflict observed by Update.
	OnConflict func(id string, attempt uint)
}

// Store is the single entry point for session persistence. It wraps one
// Backend chosen at startup.
//
//	Docs: session/doc.go
type Store struct {
	backend         Backend
	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
	now             func() time.Time
	newID           func() string
	onConflict      func(id string, attempt uint)
}

// NewStore creates a [Store] over backend.
func NewStore(backend Backend, opts Options) *Store {
	s := &Store{
		backend:         backend,
		maxAttempts:     opts.MaxAttempts,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		now:             opts.Now,
		newID:           opts.NewID,
		onConflict:      opts.OnConflict,
	}
	if s.maxAttempts == 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.initialInterval <= 0 {
		s.initialInterval = defaultInitialInterval
	}
	if s.maxInterval < s.initialInterval {
		s.maxInterval = defaultMaxInterval
		if s.maxInterval < s.initialInterval {
			s.maxInterval = s.initialInterval
		}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// CreateOption customizes a session built by Create.
type CreateOption func(*Session)

// WithKeyHashes sets the edit and view key digests.
func WithKeyHashes(editHash, viewHash string) CreateOption {
	return func(s *Session) {
		s.EditKeyHash = editHash
		s.ViewKeyHash = viewHash
	}
}

// AsCapability marks the session as created by the always-keyed flow.
func AsCapability() CreateOption {
	return func(s *Session) {
		s.Cap = true
	}
}

// WithCreatedAt overrides the creation timestamp (epoch milliseconds).
func WithCreatedAt(ms int64) CreateOption {
	return func(s *Session) {
		s.CreatedAt = ms
		s.LastAccess = ms
	}
}

// Create assigns a fresh id, applies opts to a zero-value session and writes
// it once. Ids are never reused: a colliding id is regenerated.
//
//	Performance: 1 backend insert (Redis: 1 EVALSHA).
func (s *Store) Create(ctx context.Context, name string, opts ...CreateOption) (*Session, error) {
	now := s.now().UnixMilli()

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		sess := &Session{
			SchemaVersion: CurrentSchemaVersion,
			ID:            s.newID(),
			Name:          name,
			CreatedAt:     now,
			LastAccess:    now,
			Asked:         []Question{},
			Skipped:       []Question{},
			Answers:       map[string]string{},
		}
		for _, opt := range opts {
			opt(sess)
		}

		err := s.backend.Insert(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrExists) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: could not allocate a unique id", ErrStorageUnavailable)
}

// Get performs a single fetch. It does not touch lastAccess.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.backend.Fetch(ctx, id)
}

// Save overwrites the full record at sess.ID. Concurrent updates may be lost;
// use Update or Touch when that matters. The version is advanced so Updates
// that read the previous state retry on top of this write.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("save requires a session with an id")
	}
	sess.Version++
	if err := s.backend.Write(ctx, sess); err != nil {
		sess.Version--
		return err
	}
	return nil
}

// Update applies transition to the current record and writes the result if
// no concurrent write happened in between, retrying on version conflicts.
//
//	Performance: 2 backend round trips per attempt (fetch + CAS).
func (s *Store) Update(ctx context.Context, id string, transition Transition) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	var attempt uint
	operation := func() (*Session, error) {
		attempt++

		current, err := s.backend.Fetch(ctx, id)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		next, err := transition(current.Clone())
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if next == nil {
			return current, nil
		}

		next.ID = current.ID
		next.Version = current.Version + 1
		if err := s.backend.CompareAndSwap(ctx, next, current.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				if s.onConflict != nil {
					s.onConflict(id, attempt)
				}
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return next, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval
	policy.MaxInterval = s.maxInterval

	sess, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(s.maxAttempts),
	)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("%w: gave up after %d attempts", ErrConflict, attempt)
		}
		return nil, err
	}
	return sess, nil
}

// Touch refreshes lastAccess through Update so it never clobbers a
// concurrent content change.
func (s *Store) Touch(ctx context.Context, id string) (*Session, error) {
	at := s.now().UnixMilli()
	return s.Update(ctx, id, func(current *Session) (*Session, error) {
		if current.LastAccess >= at {
			return nil, nil
		}
		current.LastAccess = at
		return current, nil
	})
}

// Delete removes a session. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.backend.Delete(ctx, id)
}

// List returns every indexed session. It is an admin-only O(n) operation and
// must not be used in request hot paths.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	return s.backend.List(ctx)
}

// Ping checks backend availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := s.backend.Ping(ctx)
	return time.Since(start), err
}

// NowMillis returns the store clock in epoch milliseconds.
func (s *Store) NowMillis() int64 {
	return s.now().UnixMilli()
}
