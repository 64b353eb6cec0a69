package rate

import (
	"context"
	"fmt"
	"time"
)

// Scopes used by the Engine and the security monitor.
const (
	ScopeAPI         = "api"
	ScopeLogin       = "login"
	ScopeRegister    = "register"
	ScopeRefresh     = "refresh"
	ScopeVerify      = "verify"
	ScopeFailedLogin = "failed_login"
)

// Policy configures one scope.
type Policy struct {
	// Points is the number of consumptions allowed per window.
	Points int
	// Duration is the window length.
	Duration time.Duration
	// BlockDuration is the penalty once Points is exceeded. Zero means the
	// remainder of the current window.
	BlockDuration time.Duration
}

// Validate reports a misconfigured policy.
func (p Policy) Validate() error {
	if p.Points <= 0 {
		return fmt.Errorf("points must be > 0")
	}
	if p.Duration < time.Second {
		return fmt.Errorf("duration must be >= 1s")
	}
	if p.BlockDuration < 0 {
		return fmt.Errorf("block duration must be >= 0")
	}
	return nil
}

// DefaultPolicies returns the baseline policy per scope.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ScopeAPI:         {Points: 100, Duration: time.Minute},
		ScopeLogin:       {Points: 5, Duration: time.Minute},
		ScopeRegister:    {Points: 3, Duration: time.Hour},
		ScopeRefresh:     {Points: 30, Duration: time.Minute},
		ScopeVerify:      {Points: 10, Duration: 15 * time.Minute},
		ScopeFailedLogin: {Points: 5, Duration: 10 * time.Minute},
	}
}

// ValidatePolicies checks every entry of policies.
func ValidatePolicies(policies map[string]Policy) error {
	for scope, p := range policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("rate policy %q: %w", scope, err)
		}
	}
	return nil
}

// Result is the outcome of one Consume call.
type Result struct {
	Allowed   bool
	Consumed  int
	Remaining int
	// RetryAfter is set only when Allowed is false.
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 when rejected.
func (r Result) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter consumes points from (scope, key) buckets.
type Limiter interface {
	Consume(ctx context.Context, scope, key string) (Result, error)
	// Blocked reports how long a further Consume on (scope, key) would be
	// refused, without consuming. Zero means the next Consume is counted.
	Blocked(ctx context.Context, scope, key string) (time.Duration, error)
	Reset(ctx context.Context, scope, key string) error
}

func remaining(points, consumed int) int {
	if consumed >= points {
		return 0
	}
	return points - consumed
}

func counterKey(scope, key string) string {
	return "rl:" + scope + ":" + key
}

func blockKey(scope, key string) string {
	return "rlb:" + scope + ":" + key
}

func copyPolicies(in map[string]Policy) map[string]Policy {
	out := make(map[string]Policy, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
