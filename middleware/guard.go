package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/capability"
)

type callerContextKey struct{}

// AdminVerifier checks an admin bearer credential.
type AdminVerifier interface {
	VerifyAdmin(token string) bool
}

// CallerFromContext returns the credentials stored by [Credentials].
func CallerFromContext(ctx context.Context) (feedback.Caller, bool) {
	c, ok := ctx.Value(callerContextKey{}).(feedback.Caller)
	return c, ok
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller feedback.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// Credentials extracts the candidate capability key, the admin bearer token
// and the client IP once per request. Nothing is verified here.
func Credentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := feedback.Caller{
			Key:        capability.ExtractCandidateKey(r),
			AdminToken: capability.AdminCandidate(r),
			IP:         clientIP(r.RemoteAddr),
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireAdmin rejects requests that do not carry a valid admin credential.
// The response is the same one a failed capability check produces.
func RequireAdmin(verifier AdminVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				forbidden(w)
				return
			}

			token := capability.AdminCandidate(r)
			if caller, ok := CallerFromContext(r.Context()); ok {
				token = caller.AdminToken
			}
			if !verifier.VerifyAdmin(token) {
				forbidden(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
