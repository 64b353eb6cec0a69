// Package config loads process settings for the authcore binaries: an
// optional YAML file for non-secret tuning, then environment overrides.
// Secrets are read from the environment only.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/internal/rate"
)

// Settings is everything a binary needs to start.
type Settings struct {
	Auth authcore.Config

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	Redis       RedisSettings
	DatabaseDSN string
	Kafka       KafkaSettings
}

// RedisSettings locates the shared Redis.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
}

// KafkaSettings enables the Kafka alert sink when Brokers is set.
type KafkaSettings struct {
	Brokers    []string
	AlertTopic string
}

type policyFile struct {
	Points   int           `yaml:"points"`
	Duration time.Duration `yaml:"duration"`
	Block    time.Duration `yaml:"block"`
}

// fileConfig is the YAML layout. Absent keys keep their defaults.
type fileConfig struct {
	Production bool   `yaml:"production"`
	HTTPAddr   string `yaml:"http_addr"`
	Log        struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	JWT struct {
		Issuer    string        `yaml:"issuer"`
		Audience  string        `yaml:"audience"`
		AccessTTL time.Duration `yaml:"access_ttl"`
		Leeway    time.Duration `yaml:"leeway"`
	} `yaml:"jwt"`
	Password struct {
		MemoryKB       uint32 `yaml:"memory_kb"`
		Time           uint32 `yaml:"time"`
		Parallelism    uint8  `yaml:"parallelism"`
		UpgradeOnLogin bool   `yaml:"upgrade_on_login"`
	} `yaml:"password"`
	Verification struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"verification"`
	RateLimits       map[string]policyFile `yaml:"rate_limits"`
	WarnAt           int                   `yaml:"warn_at"`
	LockoutThreshold int                   `yaml:"lockout_threshold"`
	Cookie           struct {
		Name   string        `yaml:"name"`
		Path   string        `yaml:"path"`
		Domain string        `yaml:"domain"`
		MaxAge time.Duration `yaml:"max_age"`
	} `yaml:"cookie"`
	Audit struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
		DropIfFull bool `yaml:"drop_if_full"`
	} `yaml:"audit"`
	Metrics struct {
		Enabled           bool `yaml:"enabled"`
		LatencyHistograms bool `yaml:"latency_histograms"`
	} `yaml:"metrics"`
	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers    []string `yaml:"brokers"`
		AlertTopic string   `yaml:"alert_topic"`
	} `yaml:"kafka"`
}

func defaultFile() *fileConfig {
	def := authcore.DefaultConfig()

	f := &fileConfig{HTTPAddr: ":8080"}
	f.Log.Level = "info"
	f.Log.Format = "json"
	f.JWT.Issuer = def.JWT.Issuer
	f.JWT.AccessTTL = def.JWT.AccessTTL
	f.Password.MemoryKB = def.Password.Memory
	f.Password.Time = def.Password.Time
	f.Password.Parallelism = def.Password.Parallelism
	f.Password.UpgradeOnLogin = def.Password.UpgradeOnLogin
	f.Verification.Enabled = def.Verification.Enabled
	f.Verification.TTL = def.Verification.TTL
	f.RateLimits = make(map[string]policyFile, len(def.RateLimit.Policies))
	for scope, p := range def.RateLimit.Policies {
		f.RateLimits[scope] = policyFile{Points: p.Points, Duration: p.Duration, Block: p.BlockDuration}
	}
	f.WarnAt = def.RateLimit.WarnAt
	f.LockoutThreshold = def.Lockout.Threshold
	f.Cookie.Name = def.Cookie.Name
	f.Cookie.Path = def.Cookie.Path
	f.Cookie.MaxAge = def.Cookie.MaxAge
	f.Audit.Enabled = def.Audit.Enabled
	f.Audit.BufferSize = def.Audit.BufferSize
	f.Audit.DropIfFull = def.Audit.DropIfFull
	f.Metrics.Enabled = def.Metrics.Enabled
	f.Metrics.LatencyHistograms = def.Metrics.EnableLatencyHistograms
	f.Redis.Addr = "localhost:6379"
	f.Kafka.AlertTopic = "authcore.security-alerts"
	return f
}

// Load reads .env (if present), then the YAML file at path (if non-empty and
// present), then environment overrides. The returned Auth config has not been
// validated; Builder.Build does that.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	f := defaultFile()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, f); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	s := f.settings()
	if err := applyEnv(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *fileConfig) settings() *Settings {
	cfg := authcore.DefaultConfig()
	cfg.ProductionMode = f.Production
	cfg.JWT.Issuer = f.JWT.Issuer
	cfg.JWT.Audience = f.JWT.Audience
	cfg.JWT.AccessTTL = f.JWT.AccessTTL
	cfg.JWT.Leeway = f.JWT.Leeway
	cfg.Password.Memory = f.Password.MemoryKB
	cfg.Password.Time = f.Password.Time
	cfg.Password.Parallelism = f.Password.Parallelism
	cfg.Password.UpgradeOnLogin = f.Password.UpgradeOnLogin
	cfg.Verification.Enabled = f.Verification.Enabled
	cfg.Verification.TTL = f.Verification.TTL
	for scope, p := range f.RateLimits {
		cfg.RateLimit.Policies[scope] = rate.Policy{Points: p.Points, Duration: p.Duration, BlockDuration: p.Block}
	}
	cfg.RateLimit.WarnAt = f.WarnAt
	cfg.Lockout.Threshold = f.LockoutThreshold
	cfg.Cookie.Name = f.Cookie.Name
	cfg.Cookie.Path = f.Cookie.Path
	cfg.Cookie.Domain = f.Cookie.Domain
	cfg.Cookie.MaxAge = f.Cookie.MaxAge
	cfg.Audit.Enabled = f.Audit.Enabled
	cfg.Audit.BufferSize = f.Audit.BufferSize
	cfg.Audit.DropIfFull = f.Audit.DropIfFull
	cfg.Metrics.Enabled = f.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = f.Metrics.LatencyHistograms

	return &Settings{
		Auth:      cfg,
		HTTPAddr:  f.HTTPAddr,
		LogLevel:  f.Log.Level,
		LogFormat: f.Log.Format,
		Redis: RedisSettings{
			Addr: f.Redis.Addr,
			DB:   f.Redis.DB,
		},
		Kafka: KafkaSettings{
			Brokers:    f.Kafka.Brokers,
			AlertTopic: f.Kafka.AlertTopic,
		},
	}
}

var envScopes = map[string]string{
	"API":          rate.ScopeAPI,
	"LOGIN":        rate.ScopeLogin,
	"REGISTER":     rate.ScopeRegister,
	"REFRESH":      rate.ScopeRefresh,
	"VERIFY":       rate.ScopeVerify,
	"FAILED_LOGIN": rate.ScopeFailedLogin,
}

// applyEnv overrides s from the environment. Every malformed value is
// reported, not just the first.
func applyEnv(s *Settings) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &s.Auth
	collect(envBool("AUTH_PRODUCTION", &cfg.ProductionMode))
	envBytes("AUTH_JWT_SECRET", &cfg.JWT.Secret)
	envBytes("AUTH_ENCRYPTION_KEY", &cfg.Encryption.Key)
	envBytes("AUTH_VERIFICATION_SALT", &cfg.Verification.Salt)
	collect(envBool("AUTH_VERIFICATION_ENABLED", &cfg.Verification.Enabled))
	collect(envMinutes("AUTH_VERIFICATION_TTL_MINUTES", &cfg.Verification.TTL))
	collect(envDuration("AUTH_ACCESS_TTL", &cfg.JWT.AccessTTL))
	collect(envInt("AUTH_LOCKOUT_THRESHOLD", &cfg.Lockout.Threshold))
	envString("AUTH_COOKIE_DOMAIN", &cfg.Cookie.Domain)

	for name, scope := range envScopes {
		p := cfg.RateLimit.Policies[scope]
		collect(envInt("AUTH_RATE_"+name+"_POINTS", &p.Points))
		collect(envDuration("AUTH_RATE_"+name+"_DURATION", &p.Duration))
		collect(envDuration("AUTH_RATE_"+name+"_BLOCK", &p.BlockDuration))
		cfg.RateLimit.Policies[scope] = p
	}

	envString("REDIS_ADDR", &s.Redis.Addr)
	envString("REDIS_PASSWORD", &s.Redis.Password)
	collect(envInt("REDIS_DB", &s.Redis.DB))
	envString("DATABASE_DSN", &s.DatabaseDSN)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		s.Kafka.Brokers = splitList(v)
	}
	envString("KAFKA_ALERT_TOPIC", &s.Kafka.AlertTopic)
	envString("HTTP_ADDR", &s.HTTPAddr)
	envString("LOG_LEVEL", &s.LogLevel)
	envString("LOG_FORMAT", &s.LogFormat)

	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func envBytes(key string, dst *[]byte) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = []byte(v)
	}
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// envDuration accepts Go durations ("90s", "15m") or a bare number of seconds.
func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envMinutes(key string, dst *time.Duration) error {
	var n int
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	if err := envInt(key, &n); err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("%s: must be > 0, got %s", key, v)
	}
	*dst = time.Duration(n) * time.Minute
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
