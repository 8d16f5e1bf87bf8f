package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/internal/logger"
	"github.com/Quisharoo/manager-feedback-questions-sub000/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	Service *feedback.Service
	Logger  zerolog.Logger
	// AllowedOrigins lists browser origins allowed by CORS. Empty disables
	// CORS headers.
	AllowedOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Those headers are client-controlled unless a reverse proxy overwrites
	// them, and the create rate limit keys on the client address, so only
	// set this behind such a proxy.
	TrustProxy bool
}

// NewRouter wires the session routes to the service.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(logger.Requests(opts.Logger))
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}
	r.Use(middleware.Credentials)

	h := &handler{svc: opts.Service}
	admin := middleware.RequireAdmin(opts.Service)

	r.Get("/healthz", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.create(feedback.RouteSessions))
		r.With(admin).Get("/", h.list)
		r.Get("/{id}", h.get(feedback.RouteSessions))
		r.Patch("/{id}", h.patch(feedback.RouteSessions))
		r.With(admin).Delete("/{id}", h.delete)
		r.With(admin).Post("/{id}/keys", h.rotateKeys)
	})

	r.Route("/capsessions", func(r chi.Router) {
		r.Post("/", h.create(feedback.RouteCapSessions))
		r.Get("/{id}", h.get(feedback.RouteCapSessions))
		r.Patch("/{id}", h.patch(feedback.RouteCapSessions))
	})

	return r
}
