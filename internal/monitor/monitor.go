// Package monitor tracks failed logins per (ip, identity) and escalates
// repeated failures into security alerts.
//
// The suspicious-IP set is process-local and cleared on restart. Enforcement
// lives in the rate limiter's shared buckets, so the set is advisory only.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bikebill/authcore/internal/audit"
	"github.com/bikebill/authcore/internal/rate"
	"github.com/bikebill/authcore/internal/stores"
)

const (
	// AlertKindFailedLogin marks an alert raised by the failed-login ceiling.
	AlertKindFailedLogin = "failed_login_ceiling"
	// EventSecurityAlert is the audit event type for escalations.
	EventSecurityAlert = "security_alert"

	suspiciousTTL = 24 * time.Hour
)

// AlertRecorder persists security alerts.
type AlertRecorder interface {
	Record(ctx context.Context, alert stores.Alert) error
}

// Config sets the escalation thresholds.
type Config struct {
	// Ceiling is the failed_login Points value; reaching it escalates.
	Ceiling int
	// WarnAt is the consumed count from which each failure is logged at warn.
	WarnAt int
}

// DefaultConfig matches the default failed_login policy.
func DefaultConfig() Config {
	return Config{Ceiling: 5, WarnAt: 3}
}

// Outcome describes what RecordFailure did.
type Outcome struct {
	Result    rate.Result
	Warned    bool
	Escalated bool
}

// Monitor counts failed logins and raises alerts at the ceiling.
type Monitor struct {
	limiter rate.Limiter
	alerts  AlertRecorder
	events  audit.Emitter
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time

	mu         sync.RWMutex
	suspicious map[string]time.Time
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for warnings and alerts.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAlertRecorder persists every escalation.
func WithAlertRecorder(r AlertRecorder) Option {
	return func(m *Monitor) { m.alerts = r }
}

// WithEmitter sets the async sink for alert events.
func WithEmitter(e audit.Emitter) Option {
	return func(m *Monitor) { m.events = e }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a Monitor counting failures in limiter's failed_login scope.
func New(limiter rate.Limiter, cfg Config, opts ...Option) *Monitor {
	def := DefaultConfig()
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = def.Ceiling
	}
	if cfg.WarnAt <= 0 {
		cfg.WarnAt = def.WarnAt
	}

	m := &Monitor{
		limiter:    limiter,
		logger:     slog.Default(),
		cfg:        cfg,
		now:        time.Now,
		suspicious: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func failureKey(ip, identity string) string {
	return ip + "|" + identity
}

// RecordFailure counts one failed login. Alert persistence and dispatch errors
// are logged and never returned.
func (m *Monitor) RecordFailure(ctx context.Context, ip, identity string) (Outcome, error) {
	res, err := m.limiter.Consume(ctx, rate.ScopeFailedLogin, failureKey(ip, identity))
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Result: res}
	if !res.Allowed {
		return out, nil
	}

	if res.Consumed >= m.cfg.WarnAt {
		out.Warned = true
		m.logger.WarnContext(ctx, "repeated failed logins",
			slog.String("ip", ip),
			slog.String("identity", identity),
			slog.Int("attempts", res.Consumed),
		)
	}

	if res.Consumed == m.cfg.Ceiling {
		out.Escalated = true
		m.escalate(ctx, ip, identity, res.Consumed)
	}
	return out, nil
}

func (m *Monitor) escalate(ctx context.Context, ip, identity string, attempts int) {
	now := m.now().UTC()

	m.mu.Lock()
	for addr, at := range m.suspicious {
		if now.Sub(at) > suspiciousTTL {
			delete(m.suspicious, addr)
		}
	}
	m.suspicious[ip] = now
	m.mu.Unlock()

	alert := stores.Alert{
		ID:        uuid.NewString(),
		Kind:      AlertKindFailedLogin,
		Identity:  identity,
		IP:        ip,
		Attempts:  attempts,
		CreatedAt: now,
	}

	m.logger.ErrorContext(ctx, "security alert: failed-login ceiling reached",
		slog.String("alert_id", alert.ID),
		slog.String("ip", ip),
		slog.String("identity", identity),
		slog.Int("attempts", attempts),
	)

	if m.alerts != nil {
		if err := m.alerts.Record(ctx, alert); err != nil {
			m.logger.WarnContext(ctx, "security alert not persisted",
				slog.String("alert_id", alert.ID),
				slog.Any("error", err),
			)
		}
	}

	if m.events != nil {
		m.events.Emit(ctx, audit.Event{
			Timestamp: now,
			Type:      EventSecurityAlert,
			Identity:  identity,
			IP:        ip,
			Success:   false,
			Metadata: map[string]string{
				"alert_id": alert.ID,
				"kind":     alert.Kind,
			},
		})
	}
}

// Blocked reports how long (ip, identity) stays refused after reaching the
// ceiling. It does not count an attempt.
func (m *Monitor) Blocked(ctx context.Context, ip, identity string) (time.Duration, error) {
	return m.limiter.Blocked(ctx, rate.ScopeFailedLogin, failureKey(ip, identity))
}

// ClearFailures resets the (ip, identity) bucket after a successful login.
func (m *Monitor) ClearFailures(ctx context.Context, ip, identity string) error {
	return m.limiter.Reset(ctx, rate.ScopeFailedLogin, failureKey(ip, identity))
}

// IsSuspiciousIP is a lookup in the process-local set. It never blocks.
func (m *Monitor) IsSuspiciousIP(ip string) bool {
	m.mu.RLock()
	at, ok := m.suspicious[ip]
	m.mu.RUnlock()
	return ok && m.now().Sub(at) <= suspiciousTTL
}

// SuspiciousCount returns the size of the local set.
func (m *Monitor) SuspiciousCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.suspicious)
}
