package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown identities, wrong passwords and
	// locked or deleted accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, forged, expired and rotated tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRateLimited is matched by every *RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable marks a failing backing store. It is internal and
	// maps to 500.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrVerificationInvalid is returned for unknown, consumed or mismatched
	// verification tokens.
	ErrVerificationInvalid = errors.New("verification token invalid")
	// ErrAccountExists is returned by Register for a taken identity. It maps
	// to the same status and message as malformed input.
	ErrAccountExists = errors.New("account already exists")
	// ErrPasswordPolicy is returned when a new password is rejected.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidInput is returned for structurally invalid requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrRecordNotFound must be returned by CredentialStore lookups and
	// conditional updates that match nothing.
	ErrRecordNotFound = errors.New("credential record not found")
	// ErrDuplicateIdentity must be returned by CredentialStore.Create for a
	// taken identity.
	ErrDuplicateIdentity = errors.New("duplicate identity")
)

// RateLimitedError carries the scope and the time until a retry can succeed.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

// Error names the scope that refused the request.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited (%s): retry after %ds", e.Scope, e.RetryAfterSeconds())
}

// Is matches ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// RetryAfterSeconds rounds up, with a minimum of 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ConfigError reports invalid startup configuration. It is never returned at
// request time.
type ConfigError struct {
	Field  string
	Reason string
}

// Error reports the offending field and why.
func (e *ConfigError) Error() string {
	return "authcore config: " + e.Field + ": " + e.Reason
}

func configErr(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// HTTPStatus maps an Engine error to the status code a handler should use.
// Anything not listed is 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrVerificationInvalid),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a response-safe message for err. Internal causes are
// never included.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusOK:
		return "ok"
	case http.StatusUnauthorized:
		if errors.Is(err, ErrInvalidToken) {
			return "invalid or expired token"
		}
		return "invalid credentials"
	case http.StatusTooManyRequests:
		return "too many requests"
	case http.StatusBadRequest:
		switch {
		case errors.Is(err, ErrVerificationInvalid):
			return "verification link is invalid or expired"
		case errors.Is(err, ErrPasswordPolicy):
			return "password does not meet requirements"
		default:
			return "invalid request"
		}
	default:
		return "internal error"
	}
}
