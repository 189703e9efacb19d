// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package ratelimit throttles login attempts per client.
//
// Each key gets a fixed budget of attempts per window. The first attempt in an
// absent or stale window opens a new window with a count of one. Attempts
// inside the window are allowed until the budget is spent, then denied until
// the window resets.
package ratelimit

import (
	"context"
	"time"
)

// Defaults for login throttling.
const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5
)

// Result is the outcome of a Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait at now, rounded up to
// whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return (d + time.Second - 1) / time.Second * time.Second
}

// Limiter counts attempts for a key.
type Limiter interface {
	Check(ctx context.Context, key string) (Result, error)
}

// Config configures a limiter. Zero values use the defaults.
type Config struct {
	Window      time.Duration
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}
