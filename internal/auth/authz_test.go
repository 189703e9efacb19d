// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tablewise/staffauth/internal/auth"
)

func TestHasRole(t *testing.T) {
	waiter := &auth.StaffUser{Role: auth.RoleWaiter}

	assert.True(t, auth.HasRole(waiter, auth.RoleWaiter, auth.RoleOwner))
	assert.False(t, auth.HasRole(waiter, auth.RoleAdmin))
	assert.True(t, auth.HasRole(waiter), "no role restriction admits any user")
	assert.False(t, auth.HasRole(nil, auth.RoleWaiter))
}

func TestHasTenantAccess(t *testing.T) {
	tenant := uuid.New()
	other := uuid.New()
	admin := &auth.StaffUser{Role: auth.RoleAdmin, TenantID: tenant}

	assert.True(t, auth.HasTenantAccess(admin, nil))
	assert.True(t, auth.HasTenantAccess(admin, &tenant))
	assert.False(t, auth.HasTenantAccess(admin, &other), "role does not grant cross-tenant access")
	assert.False(t, auth.HasTenantAccess(nil, nil))
}

func TestDashboardPath(t *testing.T) {
	tests := map[auth.Role]string{
		auth.RoleAdmin:  "/admin",
		auth.RoleOwner:  "/owner",
		auth.RoleWaiter: "/waiter",
		auth.RoleChef:   "/kitchen",
		auth.Role("x"):  "/",
	}
	for role, want := range tests {
		assert.Equal(t, want, auth.DashboardPath(role), string(role))
	}
}
