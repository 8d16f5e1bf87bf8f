package feedback

import (
	"context"
	"errors"
)

const (
	auditEventSessionCreated     = "session_created"
	auditEventSessionUpdated     = "session_updated"
	auditEventSessionDeleted     = "session_deleted"
	auditEventSessionKeysRotated = "session_keys_rotated"
	auditEventAccessDenied       = "access_denied"
	auditEventAdminList          = "admin_list"
	auditEventRateLimited        = "rate_limit_triggered"
)

// AuditErrorCode is the coarse failure class recorded on audit events.
type AuditErrorCode string

const (
	auditErrForbidden     AuditErrorCode = "forbidden"
	auditErrAdminRequired AuditErrorCode = "admin_required"
	auditErrNotFound      AuditErrorCode = "not_found"
	auditErrValidation    AuditErrorCode = "validation"
	auditErrConflict      AuditErrorCode = "conflict"
	auditErrRateLimited   AuditErrorCode = "rate_limited"
	auditErrUnavailable   AuditErrorCode = "backend_unavailable"
	auditErrInternal      AuditErrorCode = "internal_error"
)

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	route Route,
	caller Caller,
	sessionID string,
	access string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		SessionID: sessionID,
		Route:     string(route),
		Access:    access,
		IP:        caller.IP,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	s.audit.Emit(ctx, event)
}

func (s *Service) emitDenied(ctx context.Context, route Route, caller Caller, sessionID, op string, err error) {
	s.emitAudit(ctx, auditEventAccessDenied, false, route, caller, sessionID, "", err, func() map[string]string {
		return map[string]string{"op": op}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrAdminRequired):
		return auditErrAdminRequired
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrConflict):
		return auditErrConflict
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStorage):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
