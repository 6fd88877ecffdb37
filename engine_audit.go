package tokenlife

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionCreated = "session_created"
	auditEventRotateSuccess  = "rotate_success"
	auditEventRotateInvalid  = "rotate_invalid"
	auditEventRotateReuse    = "rotate_reuse_detected"
	auditEventTokenRevoked   = "token_revoked"
	auditEventRevokeAll      = "revoke_all"
	auditEventSweepCompleted = "sweep_completed"
	auditEventVerifyFailure  = "verify_failure"
)

// AuditErrorCode is the stable error identifier recorded on failed audit
// events.
type AuditErrorCode string

const (
	auditErrTokenMalformed  AuditErrorCode = "token_malformed"
	auditErrTokenSignature  AuditErrorCode = "token_signature"
	auditErrTokenExpired    AuditErrorCode = "token_expired"
	auditErrRefreshInvalid  AuditErrorCode = "refresh_invalid"
	auditErrRefreshExpired  AuditErrorCode = "refresh_expired"
	auditErrRefreshRevoked  AuditErrorCode = "refresh_revoked"
	auditErrRefreshReuse    AuditErrorCode = "refresh_reuse"
	auditErrPayloadMismatch AuditErrorCode = "payload_mismatch"
	auditErrSessionExpired  AuditErrorCode = "session_expired"
	auditErrUserNotFound    AuditErrorCode = "user_not_found"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrRefreshReuse):
		return auditErrRefreshReuse
	case errors.Is(err, ErrRefreshRevoked):
		return auditErrRefreshRevoked
	case errors.Is(err, ErrRefreshExpired):
		return auditErrRefreshExpired
	case errors.Is(err, ErrRefreshInvalid):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrPayloadMismatch):
		return auditErrPayloadMismatch
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenSignature):
		return auditErrTokenSignature
	case errors.Is(err, ErrTokenMalformed):
		return auditErrTokenMalformed
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
