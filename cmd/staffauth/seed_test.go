// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/pkg/errutil"
)

const seedYAML = `staff:
  - tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f
    email: admin@example.com
    name: Admin
    role: admin
    password: correct horse battery
  - tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f
    email: chef@example.com
    name: Chef
    role: chef
    password: correct horse battery
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeed_IsIdempotent(t *testing.T) {
	stack := newMemoryStack(t)
	path := writeSeed(t, seedYAML)

	out, err := execute(t, stack.deps, "seed", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 account(s), skipped 0 existing")

	out, err = execute(t, stack.deps, "seed", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 0 account(s), skipped 2 existing")

	chef, err := stack.users.GetByEmail(context.Background(), "chef@example.com", &testTenant)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleChef, chef.Role)
}

func TestSeed_PasswordHash(t *testing.T) {
	stack := newMemoryStack(t)
	hash, err := stack.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)

	path := writeSeed(t, `staff:
  - tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f
    email: owner@example.com
    name: Owner
    role: owner
    password_hash: "`+hash+`"
`)
	_, err = execute(t, stack.deps, "seed", "--file", path)
	require.NoError(t, err)

	owner, err := stack.users.GetByEmail(context.Background(), "owner@example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, hash, owner.PasswordHash)
}

func TestParseSeedFile_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantCode string
	}{
		{
			name:     "malformed yaml",
			content:  "staff: [",
			wantCode: "SEED_INVALID",
		},
		{
			name: "both password forms",
			content: `staff:
  - {tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f, email: a@example.com, name: A, role: chef, password: x, password_hash: y}`,
			wantCode: "SEED_INVALID",
		},
		{
			name: "no password",
			content: `staff:
  - {tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f, email: a@example.com, name: A, role: chef}`,
			wantCode: "SEED_INVALID",
		},
		{
			name: "bad tenant",
			content: `staff:
  - {tenant: nope, email: a@example.com, name: A, role: chef, password: x}`,
			wantCode: "USER_INVALID_TENANT",
		},
		{
			name: "bad role",
			content: `staff:
  - {tenant: 6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f, email: a@example.com, name: A, role: host, password: x}`,
			wantCode: "AUTH_INVALID_ROLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeedFile([]byte(tt.content))
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestSeed_InvalidFileWritesNothing(t *testing.T) {
	stack := newMemoryStack(t)
	path := writeSeed(t, seedYAML+`  - {tenant: nope, email: x@example.com, name: X, role: chef, password: x}
`)
	_, err := execute(t, stack.deps, "seed", "--file", path)
	errutil.AssertErrorCode(t, err, "USER_INVALID_TENANT")

	_, err = stack.users.GetByEmail(context.Background(), "admin@example.com", nil)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestSeed_MissingFile(t *testing.T) {
	stack := newMemoryStack(t)
	_, err := execute(t, stack.deps, "seed", "--file", filepath.Join(t.TempDir(), "absent.yaml"))
	errutil.AssertErrorCode(t, err, "SEED_READ_FAILED")
}
