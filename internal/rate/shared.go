package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript returns {allowed, consumed, ms}. ms is the block TTL when
// rejected and the window TTL when allowed.
var consumeScript = redis.NewScript(`
local blocked = redis.call("PTTL", KEYS[2])
if blocked > 0 then
	local current = tonumber(redis.call("GET", KEYS[1]) or ARGV[1])
	return {0, current, blocked}
end

local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	ttl = tonumber(ARGV[2])
end

if count > tonumber(ARGV[1]) then
	local block = tonumber(ARGV[3])
	if block <= 0 then
		block = ttl
	end
	redis.call("SET", KEYS[2], "1", "PX", block)
	return {0, count, block}
end

return {1, count, ttl}
`)

// blockedScript returns the ms a further consume would be refused for, or 0.
var blockedScript = redis.NewScript(`
local blocked = redis.call("PTTL", KEYS[2])
if blocked > 0 then
	return blocked
end

local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count < tonumber(ARGV[1]) then
	return 0
end

local block = tonumber(ARGV[2])
if block > 0 then
	return block
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
	return ttl
end
return 0
`)

// SharedLimiter keeps buckets in Redis so every instance enforces the same
// ceiling.
type SharedLimiter struct {
	redis    redis.UniversalClient
	policies map[string]Policy
}

// NewShared returns a SharedLimiter. policies is copied.
func NewShared(client redis.UniversalClient, policies map[string]Policy) *SharedLimiter {
	return &SharedLimiter{redis: client, policies: copyPolicies(policies)}
}

// Consume atomically counts one hit against (scope, key).
func (l *SharedLimiter) Consume(ctx context.Context, scope, key string) (Result, error) {
	policy, ok := l.policies[scope]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	raw, err := consumeScript.Run(ctx, l.redis,
		[]string{counterKey(scope, key), blockKey(scope, key)},
		policy.Points,
		policy.Duration.Milliseconds(),
		policy.BlockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrStoreUnavailable)
	}

	consumed := int(raw[1])
	res := Result{
		Allowed:   raw[0] == 1,
		Consumed:  consumed,
		Remaining: remaining(policy.Points, consumed),
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(raw[2]) * time.Millisecond
	}
	return res, nil
}

// Blocked reports the remaining block on (scope, key). A bucket that has used
// every point counts as blocked even before the marker is written.
func (l *SharedLimiter) Blocked(ctx context.Context, scope, key string) (time.Duration, error) {
	policy, ok := l.policies[scope]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownScope, scope)
	}

	ms, err := blockedScript.Run(ctx, l.redis,
		[]string{counterKey(scope, key), blockKey(scope, key)},
		policy.Points,
		policy.BlockDuration.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ms <= 0 {
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Reset deletes both the counter and the block marker.
func (l *SharedLimiter) Reset(ctx context.Context, scope, key string) error {
	if err := l.redis.Del(ctx, counterKey(scope, key), blockKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping probes the shared store.
func (l *SharedLimiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
