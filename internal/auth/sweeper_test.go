// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/tablewise/staffauth/internal/auth"
)

type countingSweeper struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (c *countingSweeper) SweepExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func TestSweeper_SweepOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	ok := &countingSweeper{n: 3}
	failing := &countingSweeper{err: errors.New("boom")}
	s := auth.NewSweeper(map[string]auth.ExpirySweeper{"ok": ok, "failing": failing}, time.Hour, nil)
	defer s.Close()

	assert.Equal(t, int64(3), s.SweepOnce(context.Background()))
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(1), failing.calls.Load())
}

func TestSweeper_RunsOnInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	target := &countingSweeper{}
	s := auth.NewSweeper(map[string]auth.ExpirySweeper{"t": target}, 5*time.Millisecond, nil)

	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Close()
}
