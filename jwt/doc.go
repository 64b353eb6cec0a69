// Package jwt issues and verifies the short-lived HS256 access tokens used by
// the session engine.
//
// Tokens carry only the subject, issued-at and expiry (plus issuer/audience
// when configured). Verification is purely cryptographic: no storage lookup is
// made and every failure collapses into [ErrInvalidToken].
package jwt
