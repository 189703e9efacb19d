// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/auth/memory"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/telemetry"
)

const testPassword = "correct horse battery"

var testTenant = uuid.MustParse("6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f")

// memoryStack is a Deps backed by in-memory repositories.
type memoryStack struct {
	users    *memory.UserRepository
	sessions *memory.SessionRepository
	resets   *memory.ResetTokenRepository
	hasher   auth.PasswordHasher
	logs     *lockedBuffer
	deps     *Deps
}

// lockedBuffer is a bytes.Buffer safe for concurrent log writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newMemoryStack(t *testing.T) *memoryStack {
	t.Helper()
	isolateConfig(t)

	hasher, err := auth.NewBcryptHasherWithCost(4)
	require.NoError(t, err)

	s := &memoryStack{
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionRepository(),
		resets:   memory.NewResetTokenRepository(),
		hasher:   hasher,
		logs:     &lockedBuffer{},
	}
	s.deps = &Deps{
		RepositoryFactory: func(context.Context, *config.Config, *slog.Logger) (*Repositories, error) {
			return &Repositories{
				Users:    s.users,
				Sessions: s.sessions,
				Resets:   s.resets,
				Ping:     func(context.Context) error { return nil },
				Close:    func() {},
			}, nil
		},
		HasherFactory: func(int) auth.PasswordHasher { return s.hasher },
		TelemetrySetup: func(context.Context, telemetry.Options) (telemetry.ShutdownFunc, error) {
			return func(context.Context) error { return nil }, nil
		},
		LogWriter: s.logs,
		Stdin:     strings.NewReader(""),
	}
	return s
}

func (s *memoryStack) seed(t *testing.T, email string, role auth.Role) *auth.StaffUser {
	t.Helper()
	hash, err := s.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	u, err := auth.NewStaffUser(testTenant, email, "Staff "+string(role), hash, role)
	require.NoError(t, err)
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

// isolateConfig keeps tests from reading a real config file or environment.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	configFile = ""
	t.Cleanup(func() { configFile = "" })
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWithDeps(deps)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
