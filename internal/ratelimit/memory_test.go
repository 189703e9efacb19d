// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, cfg Config) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Close)
	return l, clock
}

func TestMemoryLimiter_Defaults(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	assert.Equal(t, DefaultWindow, l.cfg.Window)
	assert.Equal(t, DefaultMaxAttempts, l.cfg.MaxAttempts)
}

func TestMemoryLimiter_BudgetAndReset(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(t, Config{})
	start := clock.Now()

	for i := 1; i <= DefaultMaxAttempts; i++ {
		res, err := l.Check(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i)
		assert.Equal(t, DefaultMaxAttempts-i, res.Remaining)
		assert.Equal(t, start.Add(DefaultWindow), res.ResetAt)
		clock.Advance(time.Minute)
	}

	res, err := l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, start.Add(DefaultWindow), res.ResetAt)

	clock.Advance(DefaultWindow)
	res, err = l.Check(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, DefaultMaxAttempts-1, res.Remaining, "new window starts at one")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxAttempts: 1})

	res, err := l.Check(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Check(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = l.Check(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	l := NewMemoryLimiterWithRegistry(Config{Window: time.Minute}, reg)
	defer l.Close()

	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	l.now = clock.Now

	_, _ = l.Check(ctx, "old")
	clock.Advance(30 * time.Second)
	_, _ = l.Check(ctx, "new")
	clock.Advance(45 * time.Second)

	l.Cleanup()
	assert.Equal(t, 1, l.KeyCount())
	assert.InDelta(t, 1.0, testutil.ToFloat64(l.keysGauge), 0)
}

func TestMemoryLimiter_ConcurrentChecksNeverOverspend(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, Config{MaxAttempts: 5})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "shared")
			assert.NoError(t, err, fmt.Sprint(i))
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, allowed)
}

func TestMemoryLimiter_CleanupLoopStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := newMemoryLimiter(Config{}, nil, time.Millisecond)
	_, _ = l.Check(context.Background(), "k")
	time.Sleep(5 * time.Millisecond)
	l.Close()
}

func TestResult_RetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		resetAt time.Time
		want    time.Duration
	}{
		{"past", now.Add(-time.Second), 0},
		{"exact seconds", now.Add(90 * time.Second), 90 * time.Second},
		{"rounds up", now.Add(1500 * time.Millisecond), 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Result{ResetAt: tt.resetAt}.RetryAfter(now))
		})
	}
}
