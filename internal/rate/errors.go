package rate

import "errors"

var (
	// ErrStoreUnavailable wraps any shared-store failure.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrUnknownScope is returned for a scope with no configured Policy.
	ErrUnknownScope = errors.New("unknown rate limit scope")
)
