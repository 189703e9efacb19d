// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.StaffUser
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[ulid.ULID]*auth.StaffUser)}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyUser(u *auth.StaffUser) *auth.StaffUser {
	c := *u
	c.LockedUntil = copyTime(u.LockedUntil)
	c.LastLogin = copyTime(u.LastLogin)
	return &c
}

func notFound(id ulid.ULID) error {
	return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.StaffUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := auth.NormalizeEmail(user.Email)
	for _, existing := range r.users {
		if existing.Email == email {
			return oops.Code(auth.CodeEmailTaken).With("email", email).Errorf("email already registered")
		}
	}
	if _, ok := r.users[user.ID]; ok {
		return oops.Code("USER_CREATE_FAILED").With("id", user.ID.String()).Errorf("duplicate id")
	}
	stored := copyUser(user)
	stored.Email = email
	r.users[user.ID] = stored
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.StaffUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound(id)
	}
	return copyUser(u), nil
}

// GetByEmail retrieves a user by email, optionally within a tenant.
func (r *UserRepository) GetByEmail(_ context.Context, email string, tenantID *uuid.UUID) (*auth.StaffUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email = auth.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email != email {
			continue
		}
		if tenantID != nil && u.TenantID != *tenantID {
			continue
		}
		return copyUser(u), nil
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// RecordLoginFailure increments the counter and applies the lock under the mutex.
func (r *UserRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, now time.Time) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return 0, nil, notFound(id)
	}
	u.FailedAttempts, u.LockedUntil = auth.ApplyFailure(u.FailedAttempts, u.LockedUntil, now)
	u.UpdatedAt = now
	return u.FailedAttempts, copyTime(u.LockedUntil), nil
}

// RecordLoginSuccess clears lockout state and stamps last login.
func (r *UserRepository) RecordLoginSuccess(_ context.Context, id ulid.ULID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound(id)
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLogin = copyTime(&now)
	u.UpdatedAt = now
	return nil
}

// UpdatePasswordHash replaces the password hash.
func (r *UserRepository) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound(id)
	}
	u.PasswordHash = passwordHash
	return nil
}

// ResetPassword replaces the password hash and clears lockout state.
func (r *UserRepository) ResetPassword(_ context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound(id)
	}
	u.PasswordHash = passwordHash
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
	return nil
}

// SetActive activates or deactivates a user.
func (r *UserRepository) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return notFound(id)
	}
	u.IsActive = active
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
