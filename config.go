package authcore

import (
	"time"

	"github.com/bikebill/authcore/fieldcrypt"
	"github.com/bikebill/authcore/internal/rate"
	"github.com/bikebill/authcore/internal/stores"
	"github.com/bikebill/authcore/jwt"
	"github.com/bikebill/authcore/password"
)

// Config is the complete Engine configuration. Treat it as immutable once
// passed to the Builder.
type Config struct {
	// ProductionMode enables Secure cookies, disables the trusted-network
	// rate-limit bypass and tightens validation.
	ProductionMode bool

	JWT          JWTConfig
	Encryption   EncryptionConfig
	Password     PasswordConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Lockout      LockoutConfig
	Cookie       CookieConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access-token signing and lifetime.
type JWTConfig struct {
	// Secret is the HS256 signing key, at least 32 bytes.
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// EncryptionConfig holds the PII field-encryption key material.
type EncryptionConfig struct {
	Key []byte
}

// PasswordConfig holds the Argon2id parameters.
type PasswordConfig struct {
	Memory         uint32 // KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// VerificationConfig controls email verification tokens.
type VerificationConfig struct {
	Enabled bool
	TTL     time.Duration
	// Salt keys the HMAC that derives storage keys, at least 16 bytes.
	Salt []byte
}

// RateLimitConfig holds one Policy per scope.
type RateLimitConfig struct {
	// Policies holds one entry per scope (api, login, register, refresh,
	// verify, failed_login).
	Policies map[string]rate.Policy
	// WarnAt is the failed-login count from which failures are logged at warn.
	WarnAt int
}

// LockoutConfig locks an account after Threshold consecutive password
// failures. Zero disables lockout.
type LockoutConfig struct {
	Threshold int
}

// CookieConfig shapes the refresh-token cookie.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
	MaxAge time.Duration
}

// AuditConfig sizes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns every setting except secrets. JWT.Secret,
// Encryption.Key and (when verification is enabled) Verification.Salt must be
// supplied; there are no fallback keys.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Issuer:    "authcore",
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			Enabled: true,
			TTL:     stores.DefaultVerificationTTL,
		},
		RateLimit: RateLimitConfig{
			Policies: rate.DefaultPolicies(),
			WarnAt:   3,
		},
		Lockout: LockoutConfig{
			Threshold: 10,
		},
		Cookie: CookieConfig{
			Name:   "refreshToken",
			Path:   "/",
			MaxAge: 7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.Encryption.Key = cloneBytes(cfg.Encryption.Key)
	out.Verification.Salt = cloneBytes(cfg.Verification.Salt)
	out.RateLimit.Policies = make(map[string]rate.Policy, len(cfg.RateLimit.Policies))
	for k, v := range cfg.RateLimit.Policies {
		out.RateLimit.Policies[k] = v
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

/*
====================================
VALIDATION
====================================
*/

var requiredScopes = []string{
	rate.ScopeAPI,
	rate.ScopeLogin,
	rate.ScopeRegister,
	rate.ScopeRefresh,
	rate.ScopeVerify,
	rate.ScopeFailedLogin,
}

// MaxAccessTTL caps JWT.AccessTTL in every mode.
const MaxAccessTTL = 15 * time.Minute

// Validate returns a *ConfigError for the first problem found.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) < jwt.MinSecretLength {
		return configErr("JWT.Secret", "must be at least 32 bytes")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.AccessTTL > MaxAccessTTL {
		return configErr("JWT.AccessTTL", "must be > 0 and <= 15m")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configErr("JWT.Leeway", "must be between 0 and 2m")
	}

	// Encryption
	if len(c.Encryption.Key) < fieldcrypt.MinKeyLength {
		return configErr("Encryption.Key", "must be at least 32 bytes")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return configErr("Password.Memory", "must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return configErr("Password.Time", "must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return configErr("Password.Parallelism", "must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return configErr("Password.SaltLength", "must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return configErr("Password.KeyLength", "must be >= 16")
	}

	// Verification
	if c.Verification.Enabled {
		if c.Verification.TTL <= 0 {
			return configErr("Verification.TTL", "must be > 0")
		}
		if len(c.Verification.Salt) < stores.MinSaltLength {
			return configErr("Verification.Salt", "must be at least 16 bytes")
		}
	}

	// Rate limits
	for _, scope := range requiredScopes {
		if _, ok := c.RateLimit.Policies[scope]; !ok {
			return configErr("RateLimit.Policies", "missing scope "+scope)
		}
	}
	if err := rate.ValidatePolicies(c.RateLimit.Policies); err != nil {
		return configErr("RateLimit.Policies", err.Error())
	}
	if c.RateLimit.WarnAt < 1 || c.RateLimit.WarnAt > c.RateLimit.Policies[rate.ScopeFailedLogin].Points {
		return configErr("RateLimit.WarnAt", "must be between 1 and the failed_login ceiling")
	}

	// Lockout
	if c.Lockout.Threshold < 0 {
		return configErr("Lockout.Threshold", "must be >= 0")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return configErr("Cookie.Name", "must not be empty")
	}
	if c.Cookie.MaxAge <= 0 {
		return configErr("Cookie.MaxAge", "must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configErr("Audit.BufferSize", "must be > 0 when audit is enabled")
	}

	if c.ProductionMode {
		if c.Password.Memory < 19*1024 {
			return configErr("Password.Memory", "must be >= 19456 KB in production")
		}
	}

	return nil
}
