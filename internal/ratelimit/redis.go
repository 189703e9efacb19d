// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces limiter keys.
const DefaultRedisPrefix = "staffauth:ratelimit:"

// windowScript increments the counter and starts the window TTL on the first
// hit. It returns the new count and the remaining TTL in milliseconds.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisLimiter keeps counters in Redis so every instance shares them.
// The key TTL is the window.
type RedisLimiter struct {
	client redis.Scripter
	cfg    Config
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a RedisLimiter.
func NewRedisLimiter(client redis.Scripter, cfg Config) (*RedisLimiter, error) {
	if client == nil {
		return nil, oops.Errorf("redis client is required")
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: DefaultRedisPrefix,
		now:    time.Now,
	}, nil
}

// Check records an attempt for key. Redis errors are returned so the caller
// can refuse the attempt.
func (l *RedisLimiter) Check(ctx context.Context, key string) (Result, error) {
	vals, err := windowScript.Run(ctx, l.client, []string{l.prefix + key}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, oops.Code("RATELIMIT_BACKEND_FAILED").
			With("backend", "redis").
			Wrap(err)
	}
	if len(vals) != 2 {
		return Result{}, oops.Code("RATELIMIT_BACKEND_FAILED").
			With("backend", "redis").
			Errorf("unexpected script reply length %d", len(vals))
	}

	count, ttl := int(vals[0]), time.Duration(vals[1])*time.Millisecond
	res := Result{ResetAt: l.now().Add(ttl)}
	if count > l.cfg.MaxAttempts {
		return res, nil
	}
	res.Allowed = true
	res.Remaining = l.cfg.MaxAttempts - count
	return res, nil
}

var _ Limiter = (*RedisLimiter)(nil)
