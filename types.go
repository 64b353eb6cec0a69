package authcore

import (
	"context"
	"net/http"
	"time"
)

// CredentialRecord is one account as seen by the Engine. Email and FullName
// are PII and are encrypted at rest by the store adapter through RecordCodec.
type CredentialRecord struct {
	ID       string
	Identity string
	Email    string
	FullName string

	PasswordHash string
	// RefreshTokenHash is the SHA-256 hex digest of the single active refresh
	// token, or empty.
	RefreshTokenHash string

	EmailVerified bool
	LastLoginAt   *time.Time
	FailedLogins  int
	Locked        bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
}

// Deleted reports whether the record has been tombstoned.
func (r *CredentialRecord) Deleted() bool {
	return r.DeletedAt != nil
}

// CredentialStore persists CredentialRecords. Implementations must make each
// method a single atomic update of one record; RotateRefreshToken in
// particular must be a conditional write so that two rotations with the same
// old hash cannot both succeed.
//
// Lookups and conditional updates that match nothing return ErrRecordNotFound.
type CredentialStore interface {
	Create(ctx context.Context, rec *CredentialRecord) error
	FindByIdentity(ctx context.Context, identity string) (*CredentialRecord, error)
	FindByID(ctx context.Context, id string) (*CredentialRecord, error)

	// RotateRefreshToken replaces oldHash with newHash on the (non-deleted)
	// record holding oldHash and returns that record.
	RotateRefreshToken(ctx context.Context, oldHash, newHash string) (*CredentialRecord, error)
	// SetRefreshToken overwrites the active refresh hash. Empty clears it.
	SetRefreshToken(ctx context.Context, id, hash string) error
	// ClearRefreshToken clears hash wherever it is stored.
	ClearRefreshToken(ctx context.Context, hash string) error

	// RecordLoginSuccess sets LastLoginAt and zeroes the failed-login counter.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	// RecordLoginFailure increments the failed-login counter and returns it.
	RecordLoginFailure(ctx context.Context, id string) (int, error)
	// SetLocked sets the lock flag. Unlocking also zeroes the failed-login counter.
	SetLocked(ctx context.Context, id string, locked bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error

	// Tombstone overwrites identity-bearing fields, clears the refresh hash
	// and sets DeletedAt in one update.
	Tombstone(ctx context.Context, id string, at time.Time) error
}

// RegisterInput is the payload of Engine.Register.
type RegisterInput struct {
	Identity string
	Email    string
	FullName string
	Password string
}

// Session is the result of a successful Register, Login or Refresh.
type Session struct {
	SubjectID       string
	AccessToken     string
	AccessExpiresAt time.Time
	// RefreshToken is the raw token; it is only ever sent in RefreshCookie.
	RefreshToken  string
	RefreshCookie *http.Cookie
}

// Identity is the verified content of an access token.
type Identity struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerificationStatus reports the outcome of a verification operation.
type VerificationStatus string

const (
	// VerificationIssued: a token was generated and must be delivered.
	VerificationIssued VerificationStatus = "issued"
	// VerificationConfirmed: the token was consumed and the email marked verified.
	VerificationConfirmed VerificationStatus = "confirmed"
	// VerificationDisabled: the feature is off. Flows treat it as success.
	VerificationDisabled VerificationStatus = "disabled"
	// VerificationAlreadyDone: the account was verified before.
	VerificationAlreadyDone VerificationStatus = "already_verified"
)

// VerificationTicket is a freshly issued verification token.
type VerificationTicket struct {
	Status VerificationStatus
	Token  string
	TTL    time.Duration
}
