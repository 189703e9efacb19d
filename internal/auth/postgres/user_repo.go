// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

const userColumns = `id, tenant_id::text, email, name, password_hash, role, is_active,
		       failed_attempt_count, locked_until, last_login, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.StaffUser) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_users (
			id, tenant_id, email, name, password_hash, role, is_active,
			failed_attempt_count, locked_until, last_login, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID.String(),
		user.TenantID.String(),
		auth.NormalizeEmail(user.Email),
		user.Name,
		user.PasswordHash,
		string(user.Role),
		user.IsActive,
		user.FailedAttempts,
		user.LockedUntil,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodeEmailTaken).
				With("email", user.Email).
				Errorf("email already registered")
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert staff_user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.StaffUser, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM staff_users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive), optionally within a tenant.
func (r *UserRepository) GetByEmail(ctx context.Context, email string, tenantID *uuid.UUID) (*auth.StaffUser, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM staff_users
		WHERE lower(email) = lower($1) AND ($2::uuid IS NULL OR tenant_id = $2::uuid)`,
		auth.NormalizeEmail(email), tenantArg(tenantID))

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// RecordLoginFailure increments the counter and computes the lock in one statement.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, now time.Time) (int, *time.Time, error) {
	var (
		failures    int
		lockedUntil *time.Time
	)
	err := r.pool.QueryRow(ctx, `UPDATE staff_users SET
			failed_attempt_count = LEAST(failed_attempt_count + 1, $2),
			locked_until = CASE WHEN failed_attempt_count + 1 >= $2 THEN $3 ELSE locked_until END,
			updated_at = $4
		WHERE id = $1
		RETURNING failed_attempt_count, locked_until`,
		id.String(), auth.LockoutThreshold, now.Add(auth.LockoutDuration), now,
	).Scan(&failures, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, nil, oops.Code("USER_RECORD_FAILURE_FAILED").
			With("operation", "increment failed attempts").
			With("id", id.String()).
			Wrap(err)
	}
	return failures, lockedUntil, nil
}

// RecordLoginSuccess clears lockout state and stamps last login.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id ulid.ULID, now time.Time) error {
	return r.execOne(ctx, "record login success", id, `UPDATE staff_users SET
			failed_attempt_count = 0, locked_until = NULL, last_login = $2, updated_at = $2
		WHERE id = $1`, id.String(), now)
}

// UpdatePasswordHash replaces the password hash.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.execOne(ctx, "update password hash", id, `UPDATE staff_users SET
			password_hash = $2, updated_at = now()
		WHERE id = $1`, id.String(), passwordHash)
}

// ResetPassword replaces the password hash and clears lockout state.
func (r *UserRepository) ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string, now time.Time) error {
	return r.execOne(ctx, "reset password", id, `UPDATE staff_users SET
			password_hash = $2, failed_attempt_count = 0, locked_until = NULL, updated_at = $3
		WHERE id = $1`, id.String(), passwordHash, now)
}

// SetActive activates or deactivates a user.
func (r *UserRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	return r.execOne(ctx, "set active", id, `UPDATE staff_users SET
			is_active = $2, updated_at = now()
		WHERE id = $1`, id.String(), active)
}

// execOne runs an UPDATE expected to touch exactly one user.
func (r *UserRepository) execOne(ctx context.Context, operation string, id ulid.ULID, sql string, args ...any) error {
	result, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a StaffUser.
// pgx.ErrNoRows is returned unchanged for callers to handle.
func scanUser(row pgx.Row) (*auth.StaffUser, error) {
	var (
		u         auth.StaffUser
		idStr     string
		tenantStr string
		role      string
	)
	err := row.Scan(&idStr, &tenantStr, &u.Email, &u.Name, &u.PasswordHash, &role, &u.IsActive,
		&u.FailedAttempts, &u.LockedUntil, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan staff_user").
			Wrap(err)
	}

	if u.ID, err = parseID("id", idStr); err != nil {
		return nil, err
	}
	if u.TenantID, err = parseTenant(tenantStr); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
