package stores

import "errors"

var (
	ErrVerificationNotFound = errors.New("verification record not found")
	ErrStoreUnavailable     = errors.New("store unavailable")
)
