// Package api is the HTTP surface of the session service: the /sessions and
// /capsessions route families plus /healthz and /metrics, routed with chi.
//
// Handlers decode bodies, pull the caller from the request context and map
// service errors to status codes. They make no authorization decisions.
package api
