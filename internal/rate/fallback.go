package rate

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Pinger is implemented by tiers that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SharedTier is the primary tier of a FallbackLimiter.
type SharedTier interface {
	Limiter
	Pinger
}

// FallbackLimiter tries the shared tier first. The first shared error flips it
// into degraded mode, after which every call is served by the local tier until
// Recover succeeds.
type FallbackLimiter struct {
	shared   SharedTier
	local    Limiter
	logger   *slog.Logger
	degraded atomic.Bool
	onFlip   func(degraded bool)
}

// FallbackOption customizes a FallbackLimiter.
type FallbackOption func(*FallbackLimiter)

// WithLogger sets the logger used for tier transitions.
func WithLogger(logger *slog.Logger) FallbackOption {
	return func(f *FallbackLimiter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTransitionHook is called after every degraded-mode transition.
func WithTransitionHook(fn func(degraded bool)) FallbackOption {
	return func(f *FallbackLimiter) {
		f.onFlip = fn
	}
}

// NewFallback returns a FallbackLimiter serving from shared until it fails.
func NewFallback(shared SharedTier, local Limiter, opts ...FallbackOption) *FallbackLimiter {
	f := &FallbackLimiter{
		shared: shared,
		local:  local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Degraded reports whether the local tier is serving.
func (f *FallbackLimiter) Degraded() bool {
	return f.degraded.Load()
}

// Consume never returns ErrStoreUnavailable.
func (f *FallbackLimiter) Consume(ctx context.Context, scope, key string) (Result, error) {
	if !f.degraded.Load() {
		res, err := f.shared.Consume(ctx, scope, key)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, ErrUnknownScope) {
			return Result{}, err
		}
		f.degrade(ctx, err)
	}
	return f.local.Consume(ctx, scope, key)
}

// Blocked follows the same tier selection as Consume.
func (f *FallbackLimiter) Blocked(ctx context.Context, scope, key string) (time.Duration, error) {
	if !f.degraded.Load() {
		wait, err := f.shared.Blocked(ctx, scope, key)
		if err == nil {
			return wait, nil
		}
		if errors.Is(err, ErrUnknownScope) {
			return 0, err
		}
		f.degrade(ctx, err)
	}
	return f.local.Blocked(ctx, scope, key)
}

// Reset clears the bucket in both tiers.
func (f *FallbackLimiter) Reset(ctx context.Context, scope, key string) error {
	if err := f.local.Reset(ctx, scope, key); err != nil {
		return err
	}
	if f.degraded.Load() {
		return nil
	}
	if err := f.shared.Reset(ctx, scope, key); err != nil {
		f.degrade(ctx, err)
	}
	return nil
}

// Recover probes the shared tier and leaves degraded mode when it answers.
// It is a no-op when not degraded.
func (f *FallbackLimiter) Recover(ctx context.Context) error {
	if !f.degraded.Load() {
		return nil
	}
	if err := f.shared.Ping(ctx); err != nil {
		return err
	}
	if f.degraded.CompareAndSwap(true, false) {
		f.logger.InfoContext(ctx, "rate limiter shared store recovered")
		if f.onFlip != nil {
			f.onFlip(false)
		}
	}
	return nil
}

func (f *FallbackLimiter) degrade(ctx context.Context, cause error) {
	if f.degraded.CompareAndSwap(false, true) {
		f.logger.WarnContext(ctx, "rate limiter falling back to local buckets", slog.Any("error", cause))
		if f.onFlip != nil {
			f.onFlip(true)
		}
	}
}
