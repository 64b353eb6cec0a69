package authcore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bikebill/authcore/fieldcrypt"
	"github.com/bikebill/authcore/internal/audit"
	"github.com/bikebill/authcore/internal/monitor"
	"github.com/bikebill/authcore/internal/rate"
	"github.com/bikebill/authcore/internal/stores"
	"github.com/bikebill/authcore/jwt"
	"github.com/bikebill/authcore/password"
)

// Builder assembles an Engine. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  CredentialStore
	codec  *RecordCodec
	logger *slog.Logger

	auditSink AuditSink
	alertSink AuditSink

	now func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared store used for rate limits, verification tokens
// and security alerts.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the persistence adapter.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRecordCodec shares codec with the Engine, typically the one the
// credential store was built with. Without it Build derives a codec from
// Config.Encryption.Key.
func (b *Builder) WithRecordCodec(codec *RecordCodec) *Builder {
	b.codec = codec
	return b
}

// WithLogger sets the structured logger. Nil uses slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where Engine audit events go. Without a sink, audit is off.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithAlertSink sets where security alerts go. Without one, alerts share the
// audit sink.
func (b *Builder) WithAlertSink(sink AuditSink) *Builder {
	b.alertSink = sink
	return b
}

// WithClock overrides time.Now for tokens, cookies, local buckets and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component. It returns a
// *ConfigError for invalid settings.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client required", ErrEngineNotReady)
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: credential store required", ErrEngineNotReady)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cfg,
		store:   b.store,
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
	}

	// -------- ENCRYPTION --------
	engine.codec = b.codec
	if engine.codec == nil {
		cipher, err := fieldcrypt.New(cfg.Encryption.Key)
		if err != nil {
			return nil, configErr("Encryption.Key", err.Error())
		}
		engine.codec = NewRecordCodec(cipher, logger)
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		Secret:   cloneBytes(cfg.JWT.Secret),
		TTL:      cfg.JWT.AccessTTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, configErr("JWT", err.Error())
	}
	engine.jwtManager = jm

	ph, err := password.New(cfg.passwordConfig())
	if err != nil {
		return nil, configErr("Password", err.Error())
	}
	engine.passwordHash = ph

	// -------- AUDIT --------
	if cfg.Audit.Enabled && b.auditSink != nil {
		engine.audit = audit.NewDispatcher(audit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, logger)
	}
	engine.alertEvents = engine.audit
	if b.alertSink != nil {
		engine.alertEvents = audit.NewDispatcher(audit.Config{
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.alertSink, logger)
	}

	// -------- RATE LIMITING --------
	engine.limiter = rate.NewFallback(
		rate.NewShared(b.redis, cfg.RateLimit.Policies),
		rate.NewLocal(cfg.RateLimit.Policies, now),
		rate.WithLogger(logger),
		rate.WithTransitionHook(engine.onLimiterTransition),
	)

	// -------- SECURITY MONITOR --------
	engine.alerts = stores.NewAlertStore(b.redis, "")
	monitorOpts := []monitor.Option{
		monitor.WithLogger(logger),
		monitor.WithAlertRecorder(engine.alerts),
		monitor.WithClock(now),
	}
	if engine.alertEvents != nil {
		monitorOpts = append(monitorOpts, monitor.WithEmitter(engine.alertEvents))
	}
	engine.monitor = monitor.New(engine.limiter, monitor.Config{
		Ceiling: cfg.RateLimit.Policies[rate.ScopeFailedLogin].Points,
		WarnAt:  cfg.RateLimit.WarnAt,
	}, monitorOpts...)

	// -------- VERIFICATION --------
	if cfg.Verification.Enabled {
		vs, err := stores.NewVerificationStore(b.redis, stores.VerificationConfig{
			Salt: cfg.Verification.Salt,
			TTL:  cfg.Verification.TTL,
		})
		if err != nil {
			engine.Close()
			return nil, configErr("Verification", err.Error())
		}
		engine.verification = vs
	}

	b.built = true

	return engine, nil
}
