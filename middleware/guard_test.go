package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
)

type staticAdmin string

func (s staticAdmin) VerifyAdmin(token string) bool {
	return s != "" && token == string(s)
}

func TestCredentialsStoresCaller(t *testing.T) {
	var got feedback.Caller
	h := Credentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = CallerFromContext(r.Context())
		if !ok {
			t.Fatalf("caller missing from context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/capsessions/x?key=from-query", nil)
	req.Header.Set("Authorization", "Key from-header")
	req.RemoteAddr = "192.0.2.10:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.Key != "from-query" {
		t.Fatalf("expected query key to win, got %q", got.Key)
	}
	if got.AdminToken != "" {
		t.Fatalf("key scheme must not become an admin token")
	}
	if got.IP != "192.0.2.10" {
		t.Fatalf("unexpected ip %q", got.IP)
	}
}

func TestCredentialsBearer(t *testing.T) {
	var got feedback.Caller
	h := Credentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.AdminToken != "admin-secret" || got.Key != "" {
		t.Fatalf("unexpected caller %+v", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		verifier AdminVerifier
		header   string
		want     int
	}{
		{name: "valid bearer", verifier: staticAdmin("admin-secret"), header: "Bearer admin-secret", want: http.StatusNoContent},
		{name: "wrong bearer", verifier: staticAdmin("admin-secret"), header: "Bearer nope", want: http.StatusForbidden},
		{name: "key scheme", verifier: staticAdmin("admin-secret"), header: "Key admin-secret", want: http.StatusForbidden},
		{name: "admin disabled", verifier: staticAdmin(""), header: "Bearer ", want: http.StatusForbidden},
		{name: "nil verifier", verifier: nil, header: "Bearer admin-secret", want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := Credentials(RequireAdmin(tc.verifier)(ok))
			req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
