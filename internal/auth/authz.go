// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"slices"

	"github.com/google/uuid"
)

// HasRole reports whether user holds one of allowed. An empty allowed list
// admits any authenticated user.
func HasRole(user *StaffUser, allowed ...Role) bool {
	if user == nil {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, user.Role)
}

// HasTenantAccess reports whether user may act within tenantID. A nil tenant
// means the route is not tenant scoped.
func HasTenantAccess(user *StaffUser, tenantID *uuid.UUID) bool {
	if user == nil {
		return false
	}
	return tenantID == nil || *tenantID == user.TenantID
}

// DashboardPath returns the landing page for a role.
func DashboardPath(role Role) string {
	switch role {
	case RoleAdmin:
		return "/admin"
	case RoleOwner:
		return "/owner"
	case RoleWaiter:
		return "/waiter"
	case RoleChef:
		return "/kitchen"
	default:
		return "/"
	}
}
