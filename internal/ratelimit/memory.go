// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCleanupInterval is how often stale windows are dropped.
const DefaultCleanupInterval = 5 * time.Minute

type window struct {
	count int
	start time.Time
}

// MemoryLimiter keeps counters in a process-local map. It is safe for
// concurrent use but not shared between instances.
//
// A background goroutine drops stale windows. Call Close to stop it.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
	now     func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup

	keysGauge prometheus.Gauge
}

// NewMemoryLimiter creates a MemoryLimiter and starts its cleanup loop.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return newMemoryLimiter(cfg, nil, DefaultCleanupInterval)
}

// NewMemoryLimiterWithRegistry also registers a gauge of tracked keys.
func NewMemoryLimiterWithRegistry(cfg Config, reg prometheus.Registerer) *MemoryLimiter {
	return newMemoryLimiter(cfg, reg, DefaultCleanupInterval)
}

func newMemoryLimiter(cfg Config, reg prometheus.Registerer, cleanupInterval time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		windows: make(map[string]*window),
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if reg != nil {
		l.keysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "staffauth_ratelimit_tracked_keys",
			Help: "Current number of client keys tracked by the login rate limiter",
		})
		reg.MustRegister(l.keysGauge)
	}

	l.wg.Add(1)
	go l.cleanupLoop(cleanupInterval)
	return l
}

// Check records an attempt for key.
func (l *MemoryLimiter) Check(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.cfg.Window)) {
		w = &window{start: now}
		l.windows[key] = w
	}

	resetAt := w.start.Add(l.cfg.Window)
	if w.count >= l.cfg.MaxAttempts {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	w.count++
	return Result{Allowed: true, Remaining: l.cfg.MaxAttempts - w.count, ResetAt: resetAt}, nil
}

// KeyCount returns the number of tracked keys.
func (l *MemoryLimiter) KeyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Cleanup drops windows that have ended.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.cfg.Window)) {
			delete(l.windows, key)
		}
	}
	if l.keysGauge != nil {
		l.keysGauge.Set(float64(len(l.windows)))
	}
}

func (l *MemoryLimiter) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Close stops the cleanup goroutine and waits for it to exit.
func (l *MemoryLimiter) Close() {
	close(l.stop)
	l.wg.Wait()
}

var _ Limiter = (*MemoryLimiter)(nil)
