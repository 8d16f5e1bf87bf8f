package feedback

import (
	"github.com/Quisharoo/manager-feedback-questions-sub000/capability"
	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

// Route names the URL family a request came through.
type Route string

const (
	// RouteSessions is the legacy /sessions family. Unkeyed legacy records
	// stay readable there.
	RouteSessions Route = "sessions"
	// RouteCapSessions is the always-keyed /capsessions family.
	RouteCapSessions Route = "capsessions"
)

// Policy returns the read policy for s on this route. /capsessions is always
// strict; /sessions follows the session's own kind.
func (r Route) Policy(s *session.Session) capability.Policy {
	if r == RouteCapSessions {
		return capability.PolicyCapabilityOnly
	}
	return capability.PolicyFor(s)
}

// Caller carries the credentials presented with a request. Key is the
// candidate capability secret, AdminToken the bearer credential.
type Caller struct {
	Key        string
	AdminToken string
	IP         string
}

// Links are the one-time capability links of a session.
type Links struct {
	Edit string `json:"edit"`
	View string `json:"view"`
}

// SessionView is a session as returned to callers: digests are never
// included, Access says what the caller may do with it.
type SessionView struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	CreatedAt         int64              `json:"createdAt"`
	LastAccess        int64              `json:"lastAccess"`
	Cap               bool               `json:"cap,omitempty"`
	Asked             []session.Question `json:"asked"`
	Skipped           []session.Question `json:"skipped"`
	Answers           map[string]string  `json:"answers"`
	CurrentQuestion   *session.Question  `json:"currentQuestion,omitempty"`
	CurrentQuestionID session.QuestionID `json:"currentQuestionId,omitempty"`
	Access            string             `json:"access"`
	Links             *Links             `json:"links,omitempty"`
}

func newSessionView(s *session.Session, access string) *SessionView {
	c := s.Clone()
	return &SessionView{
		ID:                c.ID,
		Name:              c.Name,
		CreatedAt:         c.CreatedAt,
		LastAccess:        c.LastAccess,
		Cap:               c.Cap,
		Asked:             c.Asked,
		Skipped:           c.Skipped,
		Answers:           c.Answers,
		CurrentQuestion:   c.CurrentQuestion,
		CurrentQuestionID: c.CurrentQuestionID,
		Access:            access,
	}
}

// Summary is one row of the admin listing.
type Summary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`
	LastAccess int64  `json:"lastAccess"`
	Cap        bool   `json:"cap,omitempty"`
	Keyed      bool   `json:"keyed"`
	Asked      int    `json:"asked"`
	Skipped    int    `json:"skipped"`
	Answered   int    `json:"answered"`
}

func newSummary(s *session.Session) Summary {
	return Summary{
		ID:         s.ID,
		Name:       s.Name,
		CreatedAt:  s.CreatedAt,
		LastAccess: s.LastAccess,
		Cap:        s.Cap,
		Keyed:      s.Keyed(),
		Asked:      len(s.Asked),
		Skipped:    len(s.Skipped),
		Answered:   len(s.Answers),
	}
}

// Health is the result of a backend ping.
type Health struct {
	Backend   string `json:"backend"`
	LatencyMS int64  `json:"latencyMs"`
}
