// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/pkg/errutil"
)

func TestUserCreate(t *testing.T) {
	stack := newMemoryStack(t)
	stack.deps.Stdin = strings.NewReader(testPassword + "\n")

	out, err := execute(t, stack.deps, "user", "create",
		"--tenant", testTenant.String(),
		"--email", "Chef@Example.com",
		"--name", "Head Chef",
		"--role", "chef")
	require.NoError(t, err)
	assert.Contains(t, out, "Created chef@example.com (chef)")

	user, err := stack.users.GetByEmail(context.Background(), "chef@example.com", &testTenant)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleChef, user.Role)
	assert.True(t, user.IsActive)

	ok, err := stack.hasher.Verify(context.Background(), testPassword, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCreate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode string
	}{
		{
			name:     "short password",
			stdin:    "short\n",
			args:     []string{"--tenant", testTenant.String(), "--email", "a@example.com", "--name", "A", "--role", "waiter"},
			wantCode: auth.CodeResetPasswordTooShort,
		},
		{
			name:     "no password",
			stdin:    "",
			args:     []string{"--tenant", testTenant.String(), "--email", "a@example.com", "--name", "A", "--role", "waiter"},
			wantCode: "PASSWORD_READ_FAILED",
		},
		{
			name:     "bad tenant",
			stdin:    testPassword,
			args:     []string{"--tenant", "kitchen-7", "--email", "a@example.com", "--name", "A", "--role", "waiter"},
			wantCode: "USER_INVALID_TENANT",
		},
		{
			name:     "bad role",
			stdin:    testPassword,
			args:     []string{"--tenant", testTenant.String(), "--email", "a@example.com", "--name", "A", "--role", "sommelier"},
			wantCode: "AUTH_INVALID_ROLE",
		},
		{
			name:     "bad email",
			stdin:    testPassword,
			args:     []string{"--tenant", testTenant.String(), "--email", "not-an-email", "--name", "A", "--role", "waiter"},
			wantCode: "USER_INVALID_EMAIL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newMemoryStack(t)
			stack.deps.Stdin = strings.NewReader(tt.stdin)
			_, err := execute(t, stack.deps, append([]string{"user", "create"}, tt.args...)...)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	stack := newMemoryStack(t)
	stack.seed(t, "waiter@example.com", auth.RoleWaiter)
	stack.deps.Stdin = strings.NewReader(testPassword)

	_, err := execute(t, stack.deps, "user", "create",
		"--tenant", testTenant.String(),
		"--email", "waiter@example.com",
		"--name", "Second",
		"--role", "waiter")
	errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
}

func TestUserDeactivate_RevokesSessions(t *testing.T) {
	stack := newMemoryStack(t)
	user := stack.seed(t, "waiter@example.com", auth.RoleWaiter)

	store, err := auth.NewSessionStore(stack.sessions, stack.users)
	require.NoError(t, err)
	for range 2 {
		_, _, err := store.Create(context.Background(), user, false, auth.ClientMeta{})
		require.NoError(t, err)
	}

	out, err := execute(t, stack.deps, "user", "deactivate", "--email", "waiter@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked 2 session(s)")
	assert.Zero(t, stack.sessions.Len())

	got, err := stack.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = execute(t, stack.deps, "user", "activate", "--email", "waiter@example.com", "--tenant", testTenant.String())
	require.NoError(t, err)
	got, err = stack.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestUserDeactivate_UnknownEmail(t *testing.T) {
	stack := newMemoryStack(t)
	_, err := execute(t, stack.deps, "user", "deactivate", "--email", "ghost@example.com")
	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
}

func TestUserSessions(t *testing.T) {
	stack := newMemoryStack(t)
	user := stack.seed(t, "waiter@example.com", auth.RoleWaiter)
	stack.seed(t, "chef@example.com", auth.RoleChef)

	store, err := auth.NewSessionStore(stack.sessions, stack.users)
	require.NoError(t, err)
	session, _, err := store.Create(context.Background(), user, false, auth.ClientMeta{IPAddress: "192.0.2.4", UserAgent: "pos-terminal"})
	require.NoError(t, err)

	out, err := execute(t, stack.deps, "user", "sessions", "--email", "waiter@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "LAST ACTIVE")
	assert.Contains(t, out, session.ID.String())
	assert.Contains(t, out, "pos-terminal")
	assert.Contains(t, out, "1 active session(s)")

	out, err = execute(t, stack.deps, "user", "sessions", "--email", "chef@example.com", "--json")
	require.NoError(t, err)
	var infos []SessionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos), out)
	assert.Empty(t, infos)

	_, err = execute(t, stack.deps, "user", "sessions", "--email", "ghost@example.com")
	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
}

func TestReadPassword(t *testing.T) {
	got, err := readPassword(strings.NewReader("s3cret pass\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret pass", got)

	got, err = readPassword(strings.NewReader("no newline"))
	require.NoError(t, err)
	assert.Equal(t, "no newline", got)
}
