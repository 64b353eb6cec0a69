package authcore

import (
	"context"
	"errors"
	"strconv"
)

const (
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventRegisterFailure       = "register_failure"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventAccountLocked         = "account_locked"
	auditEventAccountUnlocked       = "account_unlocked"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventLogout                = "logout"
	auditEventAccountDeleted        = "account_deleted"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordUpgraded      = "password_hash_upgraded"
	auditEventVerificationIssued    = "verification_issued"
	auditEventVerificationConfirmed = "verification_confirmed"
	auditEventVerificationFailure   = "verification_failure"
	auditEventRateLimitTriggered    = "rate_limit_triggered"
	auditEventLimiterDegraded       = "rate_limiter_degraded"
	auditEventLimiterRecovered      = "rate_limiter_recovered"
)

type auditErrorCode string

const (
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrInvalidToken       auditErrorCode = "invalid_token"
	auditErrRateLimited        auditErrorCode = "rate_limited"
	auditErrVerification       auditErrorCode = "verification_invalid"
	auditErrDuplicate          auditErrorCode = "duplicate"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrInvalidInput       auditErrorCode = "invalid_input"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

// emitAudit hands an event to the dispatcher. metadataBuilder runs only when
// audit is enabled.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	identity string,
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
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		SubjectID: subjectID,
		Identity:  identity,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, identity string, retryAfterSeconds int) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", identity, ErrRateLimited, func() map[string]string {
		return map[string]string{
			"scope":       scope,
			"retry_after": strconv.Itoa(retryAfterSeconds),
		}
	})
}

func auditCode(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrVerificationInvalid):
		return auditErrVerification
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
