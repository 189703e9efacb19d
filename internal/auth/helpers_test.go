// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/auth/memory"
)

// testClock is a settable clock shared by a test and the services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newFastHasher returns a minimum cost hasher so tests stay quick.
func newFastHasher(t *testing.T) *auth.BcryptHasher {
	t.Helper()
	h, err := auth.NewBcryptHasherWithCost(4)
	require.NoError(t, err)
	return h
}

// seedUser hashes password and stores a new active user.
func seedUser(t *testing.T, users auth.UserRepository, hasher auth.PasswordHasher, email, password string, role auth.Role) *auth.StaffUser {
	t.Helper()
	hash, err := hasher.Hash(context.Background(), password)
	require.NoError(t, err)
	user, err := auth.NewStaffUser(uuid.New(), email, "Test User", hash, role)
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

// fixture wires the services to in-memory repositories and one clock.
type fixture struct {
	clock      *testClock
	hasher     *auth.BcryptHasher
	users      *memory.UserRepository
	sessions   *memory.SessionRepository
	resets     *memory.ResetTokenRepository
	store      *auth.SessionStore
	svc        *auth.Service
	reset      *auth.PasswordResetService
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:      newTestClock(),
		hasher:     newFastHasher(t),
		users:      memory.NewUserRepository(),
		sessions:   memory.NewSessionRepository(),
		resets:     memory.NewResetTokenRepository(),
		dispatcher: &recordingDispatcher{},
	}

	var err error
	f.store, err = auth.NewSessionStore(f.sessions, f.users)
	require.NoError(t, err)
	f.store.SetClock(f.clock)

	f.svc, err = auth.NewAuthService(f.users, f.store, f.hasher)
	require.NoError(t, err)
	f.svc.SetClock(f.clock)

	f.reset, err = auth.NewPasswordResetService(f.users, f.resets, f.store, f.hasher, f.dispatcher)
	require.NoError(t, err)
	f.reset.SetClock(f.clock)
	return f
}

// recordingDispatcher keeps every notice it is handed.
type recordingDispatcher struct {
	mu      sync.Mutex
	notices []auth.ResetNotice
	err     error
}

func (d *recordingDispatcher) DispatchReset(_ context.Context, notice auth.ResetNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, notice)
	return d.err
}

func (d *recordingDispatcher) Notices() []auth.ResetNotice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]auth.ResetNotice(nil), d.notices...)
}
