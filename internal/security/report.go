package security

import (
	"log/slog"
	"sort"
	"time"
)

// PasswordReport lists the effective Argon2id parameters.
type PasswordReport struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// PolicyReport describes one rate-limit scope.
type PolicyReport struct {
	Scope    string
	Points   int
	Duration time.Duration
	Block    time.Duration
}

// Report is a snapshot of the security-relevant configuration.
type Report struct {
	ProductionMode      bool
	SigningAlgorithm    string
	AccessTTL           time.Duration
	RefreshCookieMaxAge time.Duration
	SecureCookies       bool
	Argon2              PasswordReport
	VerificationEnabled bool
	VerificationTTL     time.Duration
	LockoutThreshold    int
	AuditEnabled        bool
	MetricsEnabled      bool
	RateLimits          []PolicyReport
	RateLimiterDegraded bool
}

// SortPolicies orders RateLimits by scope.
func (r *Report) SortPolicies() {
	sort.Slice(r.RateLimits, func(i, j int) bool {
		return r.RateLimits[i].Scope < r.RateLimits[j].Scope
	})
}

// Warnings lists settings that are acceptable in development only.
func (r Report) Warnings() []string {
	var w []string
	if !r.ProductionMode {
		w = append(w, "production mode is off: trusted-network rate-limit bypass is active")
	}
	if !r.SecureCookies {
		w = append(w, "refresh cookie is not marked Secure")
	}
	if r.LockoutThreshold == 0 {
		w = append(w, "account lockout is disabled")
	}
	if r.RateLimiterDegraded {
		w = append(w, "rate limiter is running on per-instance buckets")
	}
	return w
}

// LogValue renders the report as a structured log group.
func (r Report) LogValue() slog.Value {
	limits := make([]any, 0, len(r.RateLimits))
	for _, p := range r.RateLimits {
		limits = append(limits, slog.Group(p.Scope,
			slog.Int("points", p.Points),
			slog.Duration("window", p.Duration),
			slog.Duration("block", p.Block),
		))
	}
	return slog.GroupValue(
		slog.Bool("production", r.ProductionMode),
		slog.String("signing_algorithm", r.SigningAlgorithm),
		slog.Duration("access_ttl", r.AccessTTL),
		slog.Duration("refresh_max_age", r.RefreshCookieMaxAge),
		slog.Bool("secure_cookies", r.SecureCookies),
		slog.Group("argon2",
			slog.Any("memory_kb", r.Argon2.Memory),
			slog.Any("time", r.Argon2.Time),
			slog.Any("parallelism", r.Argon2.Parallelism),
			slog.Bool("upgrade_on_login", r.Argon2.UpgradeOnLogin),
		),
		slog.Bool("verification", r.VerificationEnabled),
		slog.Int("lockout_threshold", r.LockoutThreshold),
		slog.Bool("audit", r.AuditEnabled),
		slog.Bool("metrics", r.MetricsEnabled),
		slog.Group("rate_limits", limits...),
	)
}
