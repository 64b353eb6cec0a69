package rate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const pruneEvery = 256

type bucket struct {
	count        int
	windowEnd    time.Time
	blockedUntil time.Time
}

// LocalLimiter is the in-process counterpart of SharedLimiter. It is only as
// strict as the single process that holds it.
type LocalLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	policies map[string]Policy
	now      func() time.Time
	ops      int
}

// NewLocal returns a LocalLimiter. A nil now uses time.Now.
func NewLocal(policies map[string]Policy, now func() time.Time) *LocalLimiter {
	if now == nil {
		now = time.Now
	}
	return &LocalLimiter{
		buckets:  make(map[string]*bucket),
		policies: copyPolicies(policies),
		now:      now,
	}
}

// Consume counts one hit against (scope, key) in process memory.
func (l *LocalLimiter) Consume(_ context.Context, scope, key string) (Result, error) {
	policy, ok := l.policies[scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.ops++
	if l.ops%pruneEvery == 0 {
		l.prune(now)
	}

	id := counterKey(scope, key)
	b := l.buckets[id]

	if b != nil && now.Before(b.blockedUntil) {
		return Result{
			Consumed:   b.count,
			Remaining:  0,
			RetryAfter: b.blockedUntil.Sub(now),
		}, nil
	}

	if b == nil || !now.Before(b.windowEnd) {
		b = &bucket{windowEnd: now.Add(policy.Duration)}
		l.buckets[id] = b
	}
	b.count++

	if b.count > policy.Points {
		block := policy.BlockDuration
		if block <= 0 {
			block = b.windowEnd.Sub(now)
		}
		b.blockedUntil = now.Add(block)
		return Result{
			Consumed:   b.count,
			Remaining:  0,
			RetryAfter: block,
		}, nil
	}

	return Result{
		Allowed:   true,
		Consumed:  b.count,
		Remaining: remaining(policy.Points, b.count),
	}, nil
}

// Blocked mirrors SharedLimiter.Blocked for the in-process buckets.
func (l *LocalLimiter) Blocked(_ context.Context, scope, key string) (time.Duration, error) {
	policy, ok := l.policies[scope]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[counterKey(scope, key)]
	switch {
	case b == nil:
		return 0, nil
	case now.Before(b.blockedUntil):
		return b.blockedUntil.Sub(now), nil
	case now.Before(b.windowEnd) && b.count >= policy.Points:
		if policy.BlockDuration > 0 {
			return policy.BlockDuration, nil
		}
		return b.windowEnd.Sub(now), nil
	}
	return 0, nil
}

// Reset drops the bucket for (scope, key).
func (l *LocalLimiter) Reset(_ context.Context, scope, key string) error {
	l.mu.Lock()
	delete(l.buckets, counterKey(scope, key))
	l.mu.Unlock()
	return nil
}

// Len returns the number of live buckets.
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *LocalLimiter) prune(now time.Time) {
	for id, b := range l.buckets {
		if !now.Before(b.windowEnd) && !now.Before(b.blockedUntil) {
			delete(l.buckets, id)
		}
	}
}
