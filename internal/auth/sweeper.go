// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tablewise/staffauth/pkg/errutil"
)

// DefaultSweepInterval is how often expired records are removed.
const DefaultSweepInterval = 15 * time.Minute

// ExpirySweeper removes expired rows.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically runs SweepExpired on each target.
// Validation never depends on it; it only bounds storage growth.
//
// The Sweeper runs a background goroutine. Call Close to stop it.
type Sweeper struct {
	targets map[string]ExpirySweeper
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper starts sweeping targets every interval. A non-positive interval
// uses DefaultSweepInterval.
func NewSweeper(targets map[string]ExpirySweeper, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{
		targets: targets,
		logger:  logger,
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.loop(ctx, interval)
	return s
}

// SweepOnce runs every target once and returns the total removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	var total int64
	for name, target := range s.targets {
		n, err := target.SweepExpired(ctx)
		if err != nil {
			errutil.LogError(ctx, s.logger, "sweep failed", err)
			continue
		}
		if n > 0 {
			s.logger.DebugContext(ctx, "swept expired records", "target", name, "count", n)
		}
		total += n
	}
	return total
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Close stops the background goroutine and blocks until it exits.
func (s *Sweeper) Close() {
	s.cancel()
	s.wg.Wait()
}
