package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/middleware"
	"github.com/Quisharoo/manager-feedback-questions-sub000/validation"
)

const maxBodyBytes = 64 << 10

type handler struct {
	svc *feedback.Service
}

func callerOf(r *http.Request) feedback.Caller {
	caller, _ := middleware.CallerFromContext(r.Context())
	return caller
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		RespondError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, io.EOF):
		RespondError(w, r, http.StatusBadRequest, "request body is required")
	default:
		RespondError(w, r, http.StatusBadRequest, "invalid JSON body")
	}
	return false
}

func (h *handler) create(route feedback.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.CreateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		view, err := h.svc.Create(r.Context(), route, callerOf(r), req)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		RespondJSON(w, r, http.StatusCreated, view)
	}
}

func (h *handler) get(route feedback.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.svc.Get(r.Context(), route, callerOf(r), chi.URLParam(r, "id"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		RespondJSON(w, r, http.StatusOK, view)
	}
}

func (h *handler) patch(route feedback.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.PatchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		view, err := h.svc.Patch(r.Context(), route, callerOf(r), chi.URLParam(r, "id"), req)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		RespondJSON(w, r, http.StatusOK, view)
	}
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.List(r.Context(), callerOf(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerOf(r), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) rotateKeys(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.RotateKeys(r.Context(), callerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	RespondJSON(w, r, http.StatusOK, view)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	health, err := h.svc.Health(r.Context())
	if err != nil {
		RespondJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"backend": health.Backend,
		})
		return
	}
	RespondJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"backend":   health.Backend,
		"latencyMs": health.LatencyMS,
	})
}
