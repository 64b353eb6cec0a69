package authcore

import "github.com/bikebill/authcore/internal/security"

// SecurityReport summarizes the effective security settings of an Engine.
type SecurityReport = security.Report

// SecurityReport returns the effective configuration as the Engine runs it.
// It never includes key material.
func (e *Engine) SecurityReport() SecurityReport {
	c := e.config
	r := security.Report{
		ProductionMode:      c.ProductionMode,
		SigningAlgorithm:    "HS256",
		AccessTTL:           c.JWT.AccessTTL,
		RefreshCookieMaxAge: c.Cookie.MaxAge,
		SecureCookies:       c.ProductionMode,
		Argon2: security.PasswordReport{
			Memory:         c.Password.Memory,
			Time:           c.Password.Time,
			Parallelism:    c.Password.Parallelism,
			SaltLength:     c.Password.SaltLength,
			KeyLength:      c.Password.KeyLength,
			UpgradeOnLogin: c.Password.UpgradeOnLogin,
		},
		VerificationEnabled: c.Verification.Enabled,
		VerificationTTL:     c.Verification.TTL,
		LockoutThreshold:    c.Lockout.Threshold,
		AuditEnabled:        e.audit != nil,
		MetricsEnabled:      e.metrics.Enabled(),
		RateLimiterDegraded: e.limiter.Degraded(),
	}
	for scope, p := range c.RateLimit.Policies {
		r.RateLimits = append(r.RateLimits, security.PolicyReport{
			Scope:    scope,
			Points:   p.Points,
			Duration: p.Duration,
			Block:    p.BlockDuration,
		})
	}
	r.SortPolicies()
	return r
}
