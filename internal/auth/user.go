// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the single role held by a staff user.
type Role string

// Staff roles.
const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
	RoleWaiter Role = "waiter"
	RoleChef   Role = "chef"
)

// MaxEmailLength bounds stored email addresses.
const MaxEmailLength = 254

// Roles returns every known role.
func Roles() []Role {
	return []Role{RoleAdmin, RoleOwner, RoleWaiter, RoleChef}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleWaiter, RoleChef:
		return true
	}
	return false
}

// ParseRole converts a string to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// StaffUser is an employee account scoped to one tenant.
type StaffUser struct {
	ID             ulid.ULID
	TenantID       uuid.UUID
	Email          string
	Name           string
	PasswordHash   string
	Role           Role
	IsActive       bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewStaffUser creates a validated, active StaffUser.
func NewStaffUser(tenantID uuid.UUID, email, name, passwordHash string, role Role) (*StaffUser, error) {
	if tenantID == uuid.Nil {
		return nil, oops.Code("USER_INVALID_TENANT").Errorf("tenant ID cannot be nil")
	}
	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").With("role", string(role)).Errorf("unknown role %q", role)
	}

	now := time.Now().UTC()
	return &StaffUser{
		ID:           ulid.Make(),
		TenantID:     tenantID,
		Email:        normalized,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLockedAt returns true if the user is locked out at the given time.
func (u *StaffUser) IsLockedAt(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// NormalizeEmail returns the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address and returns it normalized.
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(normalized) > MaxEmailLength {
		return "", oops.Code("USER_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email is not a valid address")
	}
	return normalized, nil
}

// UserRepository manages staff user persistence.
type UserRepository interface {
	// Create stores a new user. Returns an AUTH_EMAIL_TAKEN error if the
	// email is already registered.
	Create(ctx context.Context, user *StaffUser) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*StaffUser, error)

	// GetByEmail retrieves a user by email (case-insensitive), optionally
	// restricted to a tenant. Returns ErrNotFound if no user matches.
	GetByEmail(ctx context.Context, email string, tenantID *uuid.UUID) (*StaffUser, error)

	// RecordLoginFailure atomically increments the failed attempt counter,
	// capping it at LockoutThreshold and setting the lock when it is reached.
	// Returns the stored counter and lock after the update.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (int, *time.Time, error)

	// RecordLoginSuccess clears the counter and lock and stamps last login.
	RecordLoginSuccess(ctx context.Context, id ulid.ULID, now time.Time) error

	// UpdatePasswordHash replaces the password hash only.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// ResetPassword replaces the password hash and clears lockout state.
	ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error

	// SetActive activates or deactivates a user.
	SetActive(ctx context.Context, id ulid.ULID, active bool) error
}
