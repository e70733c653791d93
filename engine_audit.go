package credkit

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventPasswordHashUpgraded  = "password_hash_upgraded"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeInvalid = "password_change_invalid_old"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventOAuthStateIssued      = "oauth_state_issued"
	auditEventOAuthCallback         = "oauth_callback"
	auditEventTokenRevoked          = "token_revoked"
	auditEventRateLimited           = "rate_limited"
)

// AuditErrorCode is the stable error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrEmailTaken         AuditErrorCode = "email_taken"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidOrExpired   AuditErrorCode = "invalid_or_expired"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrOAuthDenied        AuditErrorCode = "oauth_denied"
	auditErrStoreUnavailable   AuditErrorCode = "store_unavailable"
	auditErrProviderFailure    AuditErrorCode = "provider_failure"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
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
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
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
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrEmailTaken):
		return auditErrEmailTaken
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidOrExpired):
		return auditErrInvalidOrExpired
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrOAuthDenied):
		return auditErrOAuthDenied
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrProviderFailure):
		return auditErrProviderFailure
	default:
		return auditErrInternal
	}
}
