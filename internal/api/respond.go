package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
)

// RespondJSON writes payload as JSON with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to encode response")
	}
}

// RespondError writes {"error": message}.
func RespondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondJSON(w, r, status, map[string]string{"error": message})
}

// respondServiceError maps a service error onto a status code. Forbidden
// and admin-required share one response.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, feedback.ErrValidation):
		RespondError(w, r, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, feedback.ErrNotFound):
		RespondError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, feedback.ErrForbidden):
		RespondError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, feedback.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		RespondError(w, r, http.StatusTooManyRequests, "too many requests")
	case errors.Is(err, feedback.ErrConflict):
		RespondError(w, r, http.StatusConflict, "concurrent update, try again")
	case errors.Is(err, feedback.ErrServiceNotReady):
		RespondError(w, r, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, feedback.ErrStorage):
		RespondError(w, r, http.StatusInternalServerError, "storage error")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled service error")
		RespondError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), feedback.ErrValidation.Error()+": ")
	if msg == "" {
		return feedback.ErrValidation.Error()
	}
	return msg
}
