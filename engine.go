package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bikebill/authcore/internal"
	"github.com/bikebill/authcore/internal/audit"
	"github.com/bikebill/authcore/internal/logging"
	"github.com/bikebill/authcore/internal/monitor"
	"github.com/bikebill/authcore/internal/rate"
	"github.com/bikebill/authcore/internal/stores"
	"github.com/bikebill/authcore/jwt"
	"github.com/bikebill/authcore/password"
)

// Engine orchestrates registration, login, refresh rotation, logout and
// account deletion on top of a CredentialStore and a shared Redis.
//
// Engine instances are built once by Builder and are safe for concurrent use.
type Engine struct {
	config       Config
	store        CredentialStore
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	codec        *RecordCodec
	limiter      *rate.FallbackLimiter
	monitor      *monitor.Monitor
	verification *stores.VerificationStore
	alerts       *stores.AlertStore
	audit        *audit.Dispatcher
	alertEvents  *audit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// Close drains the audit and alert dispatchers. It is safe to call twice.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
	if e.alertEvents != e.audit {
		e.alertEvents.Close()
	}
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Codec returns the record codec shared with the credential store.
func (e *Engine) Codec() *RecordCodec {
	return e.codec
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, e.logger)
}

/*
====================================
ADMISSION
====================================
*/

// admit consumes one point of scope for key. Outside production, requests
// from loopback and private addresses are not counted.
func (e *Engine) admit(ctx context.Context, scope, key, identity string) error {
	if !e.config.ProductionMode && rate.IsTrustedAddr(ClientIPFromContext(ctx)) {
		return nil
	}

	res, err := e.limiter.Consume(ctx, scope, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !res.Allowed {
		rl := &RateLimitedError{Scope: scope, RetryAfter: res.RetryAfter}
		e.emitRateLimit(ctx, scope, identity, rl.RetryAfterSeconds())
		return rl
	}
	return nil
}

// AdmitAPI applies the api scope to key, typically the client address.
func (e *Engine) AdmitAPI(ctx context.Context, key string) error {
	return e.admit(ctx, rate.ScopeAPI, key, "")
}

// RecoverRateLimiter probes Redis and, when it answers, returns the limiter
// from local buckets to the shared tier. Callers decide when to probe.
func (e *Engine) RecoverRateLimiter(ctx context.Context) error {
	return e.limiter.Recover(ctx)
}

// RateLimiterDegraded reports whether local buckets are serving.
func (e *Engine) RateLimiterDegraded() bool {
	return e.limiter.Degraded()
}

// IsSuspiciousIP reports whether ip reached the failed-login ceiling in the
// last 24 hours on this instance.
func (e *Engine) IsSuspiciousIP(ip string) bool {
	return e.monitor.IsSuspiciousIP(ip)
}

func (e *Engine) onLimiterTransition(degraded bool) {
	event := auditEventLimiterRecovered
	if degraded {
		event = auditEventLimiterDegraded
		e.metricInc(MetricRateLimiterFallback)
	}
	e.emitAudit(context.Background(), event, !degraded, "", "", nil, nil)
}

/*
====================================
REGISTER
====================================
*/

// Register creates an account and signs it in. When verification is enabled
// the returned ticket carries the token to deliver out of band.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*Session, *VerificationTicket, error) {
	identity := normalizeIdentity(in.Identity)
	ip := ClientIPFromContext(ctx)

	if err := e.admit(ctx, rate.ScopeRegister, clientKey(ip), identity); err != nil {
		return nil, nil, err
	}

	if identity == "" {
		return nil, nil, fmt.Errorf("%w: identity is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(in.Email)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: email is malformed", ErrInvalidInput)
		}
		email = strings.ToLower(addr.Address)
	}

	hash, err := e.passwordHash.Hash(in.Password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", identity, ErrPasswordPolicy, nil)
		return nil, nil, passwordPolicyErr(err)
	}

	rec := &CredentialRecord{
		ID:           uuid.NewString(),
		Identity:     identity,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", identity, ErrAccountExists, nil)
			return nil, nil, ErrAccountExists
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", identity, err, nil)
		return nil, nil, storeErr(err)
	}

	sess, err := e.issueSession(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, rec.ID, identity, nil, nil)

	ticket := &VerificationTicket{Status: VerificationDisabled}
	if e.verification != nil && email != "" {
		ticket, err = e.issueVerification(ctx, rec)
		if err != nil {
			// The account exists; the caller can ask for a new token later.
			e.log(ctx).WarnContext(ctx, "verification token not issued at registration",
				slog.String("subject_id", rec.ID),
				slog.Any("error", err),
			)
			ticket = nil
		}
	}

	return sess, ticket, nil
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates identity with password. Unknown identities, wrong
// passwords, locked and deleted accounts all return ErrInvalidCredentials
// after the same amount of hashing work.
// Once (ip, identity) reaches the failed_login ceiling every attempt is rate
// limited until that bucket expires.
func (e *Engine) Login(ctx context.Context, identity, pw string) (*Session, error) {
	identity = normalizeIdentity(identity)
	ip := ClientIPFromContext(ctx)

	if err := e.admit(ctx, rate.ScopeLogin, clientKey(ip)+"|"+identity, identity); err != nil {
		e.metricInc(MetricLoginRateLimited)
		return nil, err
	}
	if err := e.failureBlock(ctx, ip, identity); err != nil {
		e.metricInc(MetricLoginRateLimited)
		return nil, err
	}

	if identity == "" || pw == "" {
		e.passwordHash.VerifyDummy(pw)
		return nil, e.loginFailed(ctx, nil, identity, "empty_input")
	}

	rec, err := e.store.FindByIdentity(ctx, identity)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return nil, storeErr(err)
		}
		e.passwordHash.VerifyDummy(pw)
		return nil, e.loginFailed(ctx, nil, identity, "unknown_identity")
	}

	if rec.Deleted() {
		e.passwordHash.VerifyDummy(pw)
		return nil, e.loginFailed(ctx, nil, identity, "deleted")
	}
	if rec.Locked {
		e.passwordHash.VerifyDummy(pw)
		return nil, e.loginFailed(ctx, nil, identity, "locked")
	}

	ok, err := e.passwordHash.Verify(pw, rec.PasswordHash)
	if err != nil {
		e.log(ctx).ErrorContext(ctx, "stored password hash unreadable",
			slog.String("subject_id", rec.ID),
			slog.Any("error", err),
		)
	}
	if !ok {
		return nil, e.loginFailed(ctx, rec, identity, "bad_password")
	}

	if e.config.Password.UpgradeOnLogin && e.passwordHash.NeedsUpgrade(rec.PasswordHash) {
		e.upgradeHash(ctx, rec, pw)
	}

	if err := e.store.RecordLoginSuccess(ctx, rec.ID, e.now().UTC()); err != nil {
		return nil, storeErr(err)
	}
	if err := e.monitor.ClearFailures(ctx, ip, identity); err != nil {
		e.log(ctx).WarnContext(ctx, "failed-login counter not cleared", slog.Any("error", err))
	}

	sess, err := e.issueSession(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.ID, identity, nil, nil)
	return sess, nil
}

// failureBlock refuses (ip, identity) once the failed_login ceiling is
// reached, even with the right password, until the bucket expires.
func (e *Engine) failureBlock(ctx context.Context, ip, identity string) error {
	if !e.config.ProductionMode && rate.IsTrustedAddr(ip) {
		return nil
	}

	wait, err := e.monitor.Blocked(ctx, ip, identity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if wait <= 0 {
		return nil
	}
	rl := &RateLimitedError{Scope: rate.ScopeFailedLogin, RetryAfter: wait}
	e.emitRateLimit(ctx, rate.ScopeFailedLogin, identity, rl.RetryAfterSeconds())
	return rl
}

// loginFailed feeds the security monitor and, for a known account, the
// store's consecutive-failure counter. It always returns ErrInvalidCredentials.
func (e *Engine) loginFailed(ctx context.Context, rec *CredentialRecord, identity, reason string) error {
	ip := ClientIPFromContext(ctx)
	logger := e.log(ctx)

	e.metricInc(MetricLoginFailure)

	outcome, err := e.monitor.RecordFailure(ctx, ip, identity)
	if err != nil {
		logger.WarnContext(ctx, "failed login not recorded", slog.Any("error", err))
	}
	if outcome.Escalated {
		e.metricInc(MetricSecurityAlert)
	}

	subjectID := ""
	if rec != nil {
		subjectID = rec.ID
		e.countFailure(ctx, rec)
	}

	e.emitAudit(ctx, auditEventLoginFailure, false, subjectID, identity, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidCredentials
}

func (e *Engine) countFailure(ctx context.Context, rec *CredentialRecord) {
	failures, err := e.store.RecordLoginFailure(ctx, rec.ID)
	if err != nil {
		e.log(ctx).WarnContext(ctx, "failed-login counter not persisted",
			slog.String("subject_id", rec.ID),
			slog.Any("error", err),
		)
		return
	}

	threshold := e.config.Lockout.Threshold
	if threshold <= 0 || failures < threshold {
		return
	}
	if err := e.store.SetLocked(ctx, rec.ID, true); err != nil {
		e.log(ctx).ErrorContext(ctx, "account lock not persisted",
			slog.String("subject_id", rec.ID),
			slog.Any("error", err),
		)
		return
	}

	e.metricInc(MetricAccountLocked)
	e.log(ctx).WarnContext(ctx, "account locked after repeated failures",
		slog.String("subject_id", rec.ID),
		slog.Int("failures", failures),
	)
	e.emitAudit(ctx, auditEventAccountLocked, true, rec.ID, rec.Identity, nil, nil)
}

func (e *Engine) upgradeHash(ctx context.Context, rec *CredentialRecord, pw string) {
	upgraded, err := e.passwordHash.Hash(pw)
	if err != nil {
		// Legacy passwords may predate the length policy; keep the old hash.
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, rec.ID, upgraded); err != nil {
		e.log(ctx).WarnContext(ctx, "password hash upgrade not persisted",
			slog.String("subject_id", rec.ID),
			slog.Any("error", err),
		)
		return
	}
	e.emitAudit(ctx, auditEventPasswordUpgraded, true, rec.ID, rec.Identity, nil, nil)
}

// UnlockAccount clears the lock flag and the failed-login counter.
func (e *Engine) UnlockAccount(ctx context.Context, subjectID string) error {
	if err := e.store.SetLocked(ctx, subjectID, false); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrInvalidInput
		}
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEventAccountUnlocked, true, subjectID, "", nil, nil)
	return nil
}

/*
====================================
SESSIONS
====================================
*/

// issueSession signs an access token and replaces the account's refresh
// token. Any previously issued refresh token stops working.
func (e *Engine) issueSession(ctx context.Context, subjectID string) (*Session, error) {
	access, exp, err := e.jwtManager.Issue(subjectID)
	if err != nil {
		return nil, err
	}
	refresh, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := e.store.SetRefreshToken(ctx, subjectID, internal.HashToken(refresh)); err != nil {
		return nil, storeErr(err)
	}
	return &Session{
		SubjectID:       subjectID,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    refresh,
		RefreshCookie:   e.RefreshCookie(refresh),
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented token
// is consumed by a single conditional store update, so of two concurrent
// calls with the same token at most one succeeds.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	ip := ClientIPFromContext(ctx)
	if err := e.admit(ctx, rate.ScopeRefresh, clientKey(ip), ""); err != nil {
		return nil, err
	}

	if !internal.ValidRefreshToken(refreshToken) {
		return nil, e.refreshFailed(ctx, "malformed")
	}

	next, err := internal.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	rec, err := e.store.RotateRefreshToken(ctx, internal.HashToken(refreshToken), internal.HashToken(next))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, e.refreshFailed(ctx, "no_match")
		}
		return nil, storeErr(err)
	}

	if rec.Locked {
		if err := e.store.SetRefreshToken(ctx, rec.ID, ""); err != nil {
			return nil, storeErr(err)
		}
		return nil, e.refreshFailed(ctx, "locked")
	}

	access, exp, err := e.jwtManager.Issue(rec.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, rec.ID, "", nil, nil)

	return &Session{
		SubjectID:       rec.ID,
		AccessToken:     access,
		AccessExpiresAt: exp,
		RefreshToken:    next,
		RefreshCookie:   e.RefreshCookie(next),
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, reason string) error {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidToken, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrInvalidToken
}

// Logout revokes refreshToken if it is still active and returns the cookie
// that clears it. Unknown, rotated and malformed tokens are not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (*http.Cookie, error) {
	cleared := e.ClearRefreshCookie()
	if !internal.ValidRefreshToken(refreshToken) {
		return cleared, nil
	}

	if err := e.store.ClearRefreshToken(ctx, internal.HashToken(refreshToken)); err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return cleared, storeErr(err)
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", "", nil, nil)
	return cleared, nil
}

// VerifyAccessToken validates a bearer token, with or without the "Bearer "
// prefix. It does not touch the credential store.
func (e *Engine) VerifyAccessToken(ctx context.Context, bearer string) (*Identity, error) {
	start := e.now()
	defer func() {
		e.metrics.Observe(MetricVerifyLatency, e.now().Sub(start))
	}()

	token := strings.TrimSpace(bearer)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}

	claims, err := e.jwtManager.Verify(token)
	if err != nil {
		e.metricInc(MetricAccessTokenRejected)
		return nil, ErrInvalidToken
	}
	return &Identity{
		SubjectID: claims.Subject,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

/*
====================================
ACCOUNT
====================================
*/

// DeleteAccount tombstones the account: identity-bearing fields are
// overwritten and the refresh token is revoked in one store update. Deleting
// an unknown or already deleted account is a no-op.
func (e *Engine) DeleteAccount(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return ErrInvalidInput
	}
	if err := e.store.Tombstone(ctx, subjectID, e.now().UTC()); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return storeErr(err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, subjectID, "", nil, nil)
	return nil
}

// ChangePassword replaces the password after checking the old one, then
// revokes the refresh token so other devices must sign in again.
func (e *Engine) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error {
	ip := ClientIPFromContext(ctx)
	if err := e.admit(ctx, rate.ScopeLogin, clientKey(ip)+"|"+subjectID, ""); err != nil {
		return err
	}

	rec, err := e.store.FindByID(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			return storeErr(err)
		}
		e.passwordHash.VerifyDummy(oldPassword)
		return e.passwordChangeFailed(ctx, subjectID, ErrInvalidCredentials)
	}
	if rec.Deleted() || rec.Locked {
		e.passwordHash.VerifyDummy(oldPassword)
		return e.passwordChangeFailed(ctx, subjectID, ErrInvalidCredentials)
	}

	ok, err := e.passwordHash.Verify(oldPassword, rec.PasswordHash)
	if err != nil || !ok {
		return e.passwordChangeFailed(ctx, subjectID, ErrInvalidCredentials)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return e.passwordChangeFailed(ctx, subjectID, passwordPolicyErr(err))
	}
	if err := e.store.UpdatePasswordHash(ctx, rec.ID, hash); err != nil {
		return storeErr(err)
	}
	if err := e.store.SetRefreshToken(ctx, rec.ID, ""); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, rec.ID, rec.Identity, nil, nil)
	return nil
}

func (e *Engine) passwordChangeFailed(ctx context.Context, subjectID string, err error) error {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, auditEventPasswordChangeFailure, false, subjectID, "", err, nil)
	return err
}

/*
====================================
EMAIL VERIFICATION
====================================
*/

// IssueVerification generates a fresh verification token for the account's
// current email. Earlier tokens stay valid until they expire.
func (e *Engine) IssueVerification(ctx context.Context, subjectID string) (*VerificationTicket, error) {
	if e.verification == nil {
		return &VerificationTicket{Status: VerificationDisabled}, nil
	}
	if err := e.admit(ctx, rate.ScopeVerify, "issue|"+subjectID, ""); err != nil {
		return nil, err
	}

	rec, err := e.store.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrInvalidInput
		}
		return nil, storeErr(err)
	}
	if rec.Deleted() || rec.Email == "" {
		return nil, ErrInvalidInput
	}
	if rec.EmailVerified {
		return &VerificationTicket{Status: VerificationAlreadyDone}, nil
	}
	return e.issueVerification(ctx, rec)
}

func (e *Engine) issueVerification(ctx context.Context, rec *CredentialRecord) (*VerificationTicket, error) {
	sealed, err := e.codec.EncryptValue(rec.Email)
	if err != nil {
		return nil, err
	}
	token, ttl, err := e.verification.Issue(ctx, rec.Identity, sealed)
	if err != nil {
		return nil, storeErr(err)
	}

	e.metricInc(MetricVerificationIssued)
	e.emitAudit(ctx, auditEventVerificationIssued, true, rec.ID, rec.Identity, nil, nil)
	return &VerificationTicket{Status: VerificationIssued, Token: token, TTL: ttl}, nil
}

// ConfirmEmail consumes a verification token. A token can be used once, only
// for the identity it was issued to, and only for the email it was issued for.
func (e *Engine) ConfirmEmail(ctx context.Context, identity, token string) (VerificationStatus, error) {
	if e.verification == nil {
		return VerificationDisabled, nil
	}

	identity = normalizeIdentity(identity)
	ip := ClientIPFromContext(ctx)
	if err := e.admit(ctx, rate.ScopeVerify, clientKey(ip), identity); err != nil {
		return "", err
	}

	if identity == "" || !internal.ValidVerificationToken(token) {
		return "", e.verificationFailed(ctx, identity, "malformed")
	}

	payload, err := e.verification.Consume(ctx, identity, token)
	if err != nil {
		if errors.Is(err, stores.ErrVerificationNotFound) {
			return "", e.verificationFailed(ctx, identity, "no_match")
		}
		return "", storeErr(err)
	}

	rec, err := e.store.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", e.verificationFailed(ctx, identity, "unknown_identity")
		}
		return "", storeErr(err)
	}
	if rec.Deleted() {
		return "", e.verificationFailed(ctx, identity, "deleted")
	}
	if !strings.EqualFold(e.codec.DecryptValue(payload.Email), rec.Email) {
		return "", e.verificationFailed(ctx, identity, "email_changed")
	}
	if rec.EmailVerified {
		return VerificationAlreadyDone, nil
	}

	if err := e.store.MarkEmailVerified(ctx, rec.ID); err != nil {
		return "", storeErr(err)
	}

	e.metricInc(MetricVerificationConfirmed)
	e.emitAudit(ctx, auditEventVerificationConfirmed, true, rec.ID, identity, nil, nil)
	return VerificationConfirmed, nil
}

func (e *Engine) verificationFailed(ctx context.Context, identity, reason string) error {
	e.metricInc(MetricVerificationFailure)
	e.emitAudit(ctx, auditEventVerificationFailure, false, "", identity, ErrVerificationInvalid, func() map[string]string {
		return map[string]string{"reason": reason}
	})
	return ErrVerificationInvalid
}

// RecentAlerts lists persisted security alerts, newest first.
func (e *Engine) RecentAlerts(ctx context.Context, limit int) ([]stores.Alert, error) {
	alerts, err := e.alerts.Recent(ctx, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return alerts, nil
}

/*
====================================
HELPERS
====================================
*/

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func clientKey(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}

func storeErr(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func passwordPolicyErr(err error) error {
	switch {
	case errors.Is(err, password.ErrTooShort), errors.Is(err, password.ErrTooLong):
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	default:
		return err
	}
}
