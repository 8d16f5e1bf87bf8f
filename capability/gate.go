// Package capability decides whether a presented secret grants read or write
// access to a session.
//
// Two read policies exist and are chosen per session, never implied:
//
//   - PolicyLegacyOpen: sessions created before capability keys existed carry
//     no edit digest and stay readable without a key.
//   - PolicyCapabilityOnly: a session without an edit digest is unreadable.
//
// Writes always require the edit key. The admin override is checked from the
// Authorization header only; query-string admin keys are ignored because
// query strings end up in logs and browser history.
package capability

import (
	"net/http"
	"strings"

	"github.com/Quisharoo/manager-feedback-questions-sub000/keys"
	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

// QueryParam carries a candidate key in a capability link.
const QueryParam = "key"

const (
	keyScheme    = "Key "
	bearerScheme = "Bearer "
)

// Policy selects how a session without an edit digest is treated on read.
type Policy int

const (
	// PolicyLegacyOpen treats an unkeyed session as open for reading.
	PolicyLegacyOpen Policy = iota
	// PolicyCapabilityOnly treats an unkeyed session as forbidden.
	PolicyCapabilityOnly
)

func (p Policy) String() string {
	switch p {
	case PolicyLegacyOpen:
		return "legacy_open"
	case PolicyCapabilityOnly:
		return "capability_only"
	default:
		return "unknown"
	}
}

// PolicyFor returns the read policy a session's own kind calls for.
func PolicyFor(s *session.Session) Policy {
	if s != nil && s.Cap {
		return PolicyCapabilityOnly
	}
	return PolicyLegacyOpen
}

// Access is the capability level a request holds on a session.
type Access int

const (
	AccessNone Access = iota
	AccessView
	AccessEdit
)

func (a Access) String() string {
	switch a {
	case AccessView:
		return "view"
	case AccessEdit:
		return "edit"
	default:
		return "none"
	}
}

// Gate evaluates candidate keys against session digests.
type Gate struct {
	hasher *keys.Hasher
	admin  keys.AdminKey
}

// NewGate returns a Gate using hasher for per-session digests and admin for
// the override.
func NewGate(hasher *keys.Hasher, admin keys.AdminKey) *Gate {
	return &Gate{hasher: hasher, admin: admin}
}

// Hasher returns the digest function shared with session creation.
func (g *Gate) Hasher() *keys.Hasher {
	return g.hasher
}

// ExtractCandidateKey reads a candidate secret from the "key" query parameter
// or an "Authorization: Key <secret>" header. The query parameter wins.
func ExtractCandidateKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	if key := strings.TrimSpace(r.URL.Query().Get(QueryParam)); key != "" {
		return key
	}
	if key, ok := schemeToken(r.Header.Get("Authorization"), keyScheme); ok {
		return key
	}
	return ""
}

// AdminCandidate reads the admin secret from "Authorization: Bearer <secret>".
func AdminCandidate(r *http.Request) string {
	if r == nil {
		return ""
	}
	token, _ := schemeToken(r.Header.Get("Authorization"), bearerScheme)
	return token
}

func schemeToken(value, scheme string) (string, bool) {
	if len(value) < len(scheme) || !strings.EqualFold(value[:len(scheme)], scheme) {
		return "", false
	}

	token := strings.TrimSpace(value[len(scheme):])
	if token == "" {
		return "", false
	}

	return token, true
}

// AdminConfigured reports whether the admin override is enabled at all.
func (g *Gate) AdminConfigured() bool {
	return g.admin.Configured()
}

// IsAdmin reports whether the request carries the configured admin secret in
// its Authorization header. Without a configured secret it is always false.
func (g *Gate) IsAdmin(r *http.Request) bool {
	return g.VerifyAdmin(AdminCandidate(r))
}

// VerifyAdmin checks an already extracted admin credential.
func (g *Gate) VerifyAdmin(token string) bool {
	return g.admin.Verify(token)
}

// AllowsRead is the legacy-open read check: an unkeyed session is readable by
// anyone, a keyed one by the holder of either key.
func (g *Gate) AllowsRead(s *session.Session, key string) bool {
	return g.Resolve(PolicyLegacyOpen, s, key) != AccessNone
}

// AllowsReadCapability is the strict read check: an unkeyed session is never
// readable.
func (g *Gate) AllowsReadCapability(s *session.Session, key string) bool {
	return g.Resolve(PolicyCapabilityOnly, s, key) != AccessNone
}

// AllowsReadWith dispatches to the read check named by p.
func (g *Gate) AllowsReadWith(p Policy, s *session.Session, key string) bool {
	return g.Resolve(p, s, key) != AccessNone
}

// AllowsWrite reports whether key is the session's edit key. A view key never
// grants write access.
func (g *Gate) AllowsWrite(s *session.Session, key string) bool {
	return g.Resolve(PolicyCapabilityOnly, s, key) == AccessEdit
}

// Resolve returns the strongest access key holds on s under policy p.
//
// The key is hashed exactly once when it is non-empty and never when it is
// empty, whatever the session looks like. Blind costs the same, so a missing
// session cannot be told apart from a denied one by timing.
func (g *Gate) Resolve(p Policy, s *session.Session, key string) Access {
	c := g.hasher.Prepare(key)
	if s == nil {
		return AccessNone
	}
	if s.EditKeyHash == "" {
		if p == PolicyLegacyOpen {
			return AccessView
		}
		return AccessNone
	}

	edit := c.Matches(s.EditKeyHash)
	view := c.Matches(s.ViewKeyHash)
	switch {
	case edit:
		return AccessEdit
	case view:
		return AccessView
	default:
		return AccessNone
	}
}

// Blind does the digest work of a denied Resolve for key. Lookups of unknown
// ids call it.
func (g *Gate) Blind(key string) {
	g.hasher.VerifyBlind(key)
}
