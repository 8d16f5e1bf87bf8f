package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/Quisharoo/manager-feedback-questions-sub000/action"
	"github.com/Quisharoo/manager-feedback-questions-sub000/capability"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/audit"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/rate"
	"github.com/Quisharoo/manager-feedback-questions-sub000/keys"
	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
	"github.com/Quisharoo/manager-feedback-questions-sub000/validation"
)

// errRevoked aborts an update whose authorization no longer holds against the
// freshly fetched record.
var errRevoked = errors.New("authorization revoked during update")

// Service orchestrates capability checks, the session store and patch
// actions. Build one with [Builder].
type Service struct {
	config      Config
	backendName string
	store       *session.Store
	gate        *capability.Gate
	limiter     rate.Limiter
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// Close flushes the audit dispatcher. The service must not be used after.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// Store exposes the underlying session store.
func (s *Service) Store() *session.Store {
	return s.store
}

// Backend names the storage backend selected at build time.
func (s *Service) Backend() string {
	if s == nil {
		return ""
	}
	return s.backendName
}

// AdminConfigured reports whether the admin override is enabled.
func (s *Service) AdminConfigured() bool {
	return s != nil && s.gate.AdminConfigured()
}

// UsingDevelopmentSecret reports whether digests are keyed by the built-in
// development secret.
func (s *Service) UsingDevelopmentSecret() bool {
	return s != nil && s.gate.Hasher().Default()
}

func (s *Service) metricInc(id MetricID) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) ready() error {
	if s == nil || s.store == nil || s.gate == nil {
		return ErrServiceNotReady
	}
	return nil
}

// VerifyAdmin reports whether token is the configured admin credential.
func (s *Service) VerifyAdmin(token string) bool {
	return s != nil && s.gate != nil && s.gate.VerifyAdmin(token)
}

func (s *Service) isAdmin(caller Caller) bool {
	return s.VerifyAdmin(caller.AdminToken)
}

// Create validates the name, issues a fresh edit/view key pair and persists
// a new session. On RouteSessions an admin credential is required when one
// is configured; RouteCapSessions is open but rate limited. The returned view
// carries the only copy of the raw keys, inside its links.
//
//	Performance: 1 rate-limit hit + 1 backend insert.
func (s *Service) Create(ctx context.Context, route Route, caller Caller, req validation.CreateRequest) (*SessionView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	admin := s.isAdmin(caller)
	if route == RouteSessions && s.gate.AdminConfigured() && !admin {
		return nil, s.deny(ctx, route, caller, "", "create", ErrAdminRequired)
	}
	if !admin {
		if err := s.checkRateLimit(ctx, route, caller); err != nil {
			return nil, err
		}
	}

	if err := validation.Struct(&req); err != nil {
		return nil, s.validationErr(err)
	}
	name, err := validation.Name(req.Name)
	if err != nil {
		return nil, s.validationErr(err)
	}

	pair, err := keys.NewKeyPair(s.gate.Hasher())
	if err != nil {
		return nil, fmt.Errorf("generate session keys: %w", err)
	}

	opts := []session.CreateOption{session.WithKeyHashes(pair.EditHash, pair.ViewHash)}
	if route == RouteCapSessions {
		opts = append(opts, session.AsCapability())
	}

	sess, err := s.store.Create(ctx, name, opts...)
	if err != nil {
		return nil, s.storageErr("", "create", err)
	}

	s.metricInc(MetricSessionCreated)
	s.emitAudit(ctx, auditEventSessionCreated, true, route, caller, sess.ID, capability.AccessEdit.String(), nil, nil)

	view := newSessionView(sess, capability.AccessEdit.String())
	links := buildLinks(s.config.Links.BaseURL, route, sess.ID, pair.Edit, pair.View)
	view.Links = &links
	return view, nil
}

// Get returns the session if the caller may read it through route. Unknown
// ids and failed checks are both rejected before any state is touched.
//
//	Performance: 1 backend fetch, plus 1 versioned touch when enabled.
func (s *Service) Get(ctx context.Context, route Route, caller Caller, id string) (*SessionView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	sess, err := s.fetch(ctx, route, caller, id, "read")
	if err != nil {
		return nil, err
	}

	access, viaAdmin := s.authorize(route, caller, sess)
	if access == capability.AccessNone {
		return nil, s.deny(ctx, route, caller, id, "read", ErrForbidden)
	}
	if viaAdmin {
		s.metricInc(MetricAdminOverride)
	}
	s.metricInc(MetricSessionRead)

	if s.config.Read.TouchOnRead {
		touched, err := s.store.Touch(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("touch on read failed")
		} else {
			sess = touched
		}
	}

	return newSessionView(sess, access.String()), nil
}

// Patch applies one action to the session. It requires the edit key (or the
// admin override); the view key never authorizes it. The action is applied
// through the store's versioned update so concurrent patches all survive.
//
//	Performance: 1 backend fetch + (fetch + CAS) per update attempt.
func (s *Service) Patch(ctx context.Context, route Route, caller Caller, id string, req validation.PatchRequest) (*SessionView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.Observe(MetricUpdateLatency, time.Since(start))
		}
	}()

	sess, err := s.fetch(ctx, route, caller, id, "write")
	if err != nil {
		return nil, err
	}
	access, viaAdmin := s.authorize(route, caller, sess)
	if access != capability.AccessEdit {
		return nil, s.deny(ctx, route, caller, id, "write", ErrForbidden)
	}

	if err := validation.Struct(&req); err != nil {
		return nil, s.validationErr(err)
	}
	if !action.Known(req.Action) {
		s.logger.Debug().Str("session_id", id).Str("action", req.Action).Msg("unknown action ignored")
		return newSessionView(sess, access.String()), nil
	}

	transition := action.Transition(action.FromPatch(req), s.now)
	updated, err := s.store.Update(ctx, id, func(current *session.Session) (*session.Session, error) {
		if a, _ := s.authorize(route, caller, current); a != capability.AccessEdit {
			return nil, errRevoked
		}
		return transition(current)
	})
	if err != nil {
		switch {
		case errors.Is(err, errRevoked):
			return nil, s.deny(ctx, route, caller, id, "write", ErrForbidden)
		case errors.Is(err, validation.ErrInvalid):
			return nil, s.validationErr(err)
		case errors.Is(err, session.ErrNotFound):
			s.metricInc(MetricNotFound)
			return nil, ErrNotFound
		case errors.Is(err, session.ErrConflict):
			s.metricInc(MetricUpdateConflictExhausted)
			s.logger.Error().Err(err).Str("session_id", id).Msg("session update gave up")
			wrapped := fmt.Errorf("%w: %v", ErrConflict, err)
			s.emitAudit(ctx, auditEventSessionUpdated, false, route, caller, id, access.String(), wrapped, nil)
			return nil, wrapped
		default:
			return nil, s.storageErr(id, "update", err)
		}
	}

	if viaAdmin {
		s.metricInc(MetricAdminOverride)
	}
	s.metricInc(MetricSessionUpdated)
	s.emitAudit(ctx, auditEventSessionUpdated, true, route, caller, id, access.String(), nil, func() map[string]string {
		return map[string]string{"action": req.Action}
	})

	return newSessionView(updated, access.String()), nil
}

// List returns a summary of every session, most recently used first. Admin
// only.
//
//	Performance: O(n) backend read; never used on request hot paths.
func (s *Service) List(ctx context.Context, caller Caller) ([]Summary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !s.isAdmin(caller) {
		return nil, s.deny(ctx, RouteSessions, caller, "", "list", ErrAdminRequired)
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, s.storageErr("", "list", err)
	}

	out := Summarize(all)
	s.emitAudit(ctx, auditEventAdminList, true, RouteSessions, caller, "", "", nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(len(out))}
	})
	return out, nil
}

// Summarize builds admin listing rows, most recently used first.
func Summarize(all []*session.Session) []Summary {
	out := make([]Summary, 0, len(all))
	for _, sess := range all {
		out = append(out, newSummary(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastAccess != out[j].LastAccess {
			return out[i].LastAccess > out[j].LastAccess
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a session and its index entry. Admin only.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !s.isAdmin(caller) {
		return s.deny(ctx, RouteSessions, caller, id, "delete", ErrAdminRequired)
	}
	if _, err := s.fetch(ctx, RouteSessions, caller, id, "delete"); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return s.storageErr(id, "delete", err)
	}

	s.metricInc(MetricSessionDeleted)
	s.emitAudit(ctx, auditEventSessionDeleted, true, RouteSessions, caller, id, "", nil, nil)
	return nil
}

// RotateKeys replaces a session's key pair, which also upgrades a legacy
// unkeyed record. Previously issued links stop working. Admin only. The
// returned view carries the new links.
func (s *Service) RotateKeys(ctx context.Context, caller Caller, id string) (*SessionView, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !s.isAdmin(caller) {
		return nil, s.deny(ctx, RouteSessions, caller, id, "rotate_keys", ErrAdminRequired)
	}

	pair, err := keys.NewKeyPair(s.gate.Hasher())
	if err != nil {
		return nil, fmt.Errorf("generate session keys: %w", err)
	}

	var legacy bool
	updated, err := s.store.Update(ctx, id, func(current *session.Session) (*session.Session, error) {
		legacy = !current.Keyed()
		current.EditKeyHash = pair.EditHash
		current.ViewKeyHash = pair.ViewHash
		return current, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			s.metricInc(MetricNotFound)
			return nil, ErrNotFound
		case errors.Is(err, session.ErrConflict):
			s.metricInc(MetricUpdateConflictExhausted)
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		default:
			return nil, s.storageErr(id, "rotate_keys", err)
		}
	}

	route := RouteSessions
	if updated.Cap {
		route = RouteCapSessions
	}

	s.metricInc(MetricKeysRotated)
	s.emitAudit(ctx, auditEventSessionKeysRotated, true, route, caller, id, capability.AccessEdit.String(), nil, func() map[string]string {
		return map[string]string{"upgraded_legacy": fmt.Sprint(legacy)}
	})

	view := newSessionView(updated, capability.AccessEdit.String())
	links := buildLinks(s.config.Links.BaseURL, route, id, pair.Edit, pair.View)
	view.Links = &links
	return view, nil
}

// Health pings the backend.
func (s *Service) Health(ctx context.Context) (Health, error) {
	if err := s.ready(); err != nil {
		return Health{}, err
	}
	latency, err := s.store.Ping(ctx)
	h := Health{Backend: s.backendName, LatencyMS: latency.Milliseconds()}
	if err != nil {
		return h, s.storageErr("", "ping", err)
	}
	return h, nil
}

// authorize returns the access caller holds on sess through route and
// whether it was granted by the admin override. On /capsessions the admin
// override only covers keyed sessions.
func (s *Service) authorize(route Route, caller Caller, sess *session.Session) (capability.Access, bool) {
	access := s.gate.Resolve(route.Policy(sess), sess, caller.Key)
	if access == capability.AccessEdit {
		return access, false
	}
	if s.isAdmin(caller) && (route == RouteSessions || sess.Keyed()) {
		return capability.AccessEdit, true
	}
	return access, false
}

// fetch loads id. An unknown id still costs the digest work of a denied
// check, including the admin comparison, so it is not cheaper to probe than a
// wrong key.
func (s *Service) fetch(ctx context.Context, route Route, caller Caller, id, op string) (*session.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, session.ErrNotFound) {
		s.gate.Blind(caller.Key)
		_ = s.isAdmin(caller)
		s.metricInc(MetricNotFound)
		s.logger.Debug().Str("session_id", id).Str("op", op).Msg("session not found")
		s.emitDenied(ctx, route, caller, id, op, ErrNotFound)
		return nil, ErrNotFound
	}
	return nil, s.storageErr(id, op, err)
}

func (s *Service) deny(ctx context.Context, route Route, caller Caller, id, op string, err error) error {
	s.metricInc(MetricForbidden)
	s.logger.Debug().Str("session_id", id).Str("route", string(route)).Str("op", op).Msg("access denied")
	s.emitDenied(ctx, route, caller, id, op, err)
	return err
}

func (s *Service) checkRateLimit(ctx context.Context, route Route, caller Caller) error {
	if s.limiter == nil {
		return nil
	}
	key := caller.IP
	if key == "" {
		key = "unknown"
	}

	err := s.limiter.Allow(ctx, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		s.metricInc(MetricRateLimited)
		s.emitAudit(ctx, auditEventRateLimited, false, route, caller, "", "", ErrRateLimited, nil)
		return ErrRateLimited
	default:
		// Fail open: a limiter outage does not block creation.
		s.logger.Warn().Err(err).Msg("create rate limiter unavailable")
		return nil
	}
}

func (s *Service) validationErr(err error) error {
	s.metricInc(MetricValidationFailed)
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func (s *Service) storageErr(id, op string, err error) error {
	s.metricInc(MetricStorageError)
	s.logger.Error().Err(err).Str("session_id", id).Str("op", op).Msg("session storage failure")
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
