// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Lockout configuration.
const (
	// LockoutThreshold is the number of consecutive failures that locks an account.
	LockoutThreshold = 5

	// LockoutDuration is the time an account stays locked.
	LockoutDuration = 30 * time.Minute
)

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ApplyFailure returns the counter and lock after one more failure.
// The counter stops at LockoutThreshold. It is not cleared when an old lock
// expires, so the first failure after expiry locks the account again.
func ApplyFailure(failures int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	failures++
	if failures < LockoutThreshold {
		return failures, lockedUntil
	}
	until := now.Add(LockoutDuration)
	return LockoutThreshold, &until
}

// LockoutGuard tracks failed logins per account.
type LockoutGuard struct {
	users  UserRepository
	clock  Clock
	logger *slog.Logger
}

// NewLockoutGuard creates a LockoutGuard.
func NewLockoutGuard(users UserRepository) (*LockoutGuard, error) {
	return NewLockoutGuardWithLogger(users, slog.New(slog.DiscardHandler))
}

// NewLockoutGuardWithLogger creates a LockoutGuard with a custom logger.
func NewLockoutGuardWithLogger(users UserRepository, logger *slog.Logger) (*LockoutGuard, error) {
	if users == nil {
		return nil, oops.Errorf("user repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &LockoutGuard{users: users, clock: SystemClock, logger: logger}, nil
}

// IsLocked reports whether user is locked right now.
func (g *LockoutGuard) IsLocked(user *StaffUser) bool {
	return user.IsLockedAt(g.clock.Now())
}

// OnFailure records a failed attempt and updates user with the stored state.
// Returns true if the account is locked after this failure.
func (g *LockoutGuard) OnFailure(ctx context.Context, user *StaffUser) (bool, error) {
	now := g.clock.Now()
	failures, lockedUntil, err := g.users.RecordLoginFailure(ctx, user.ID, now)
	if err != nil {
		return false, oops.Code("LOCKOUT_RECORD_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	user.FailedAttempts = failures
	user.LockedUntil = lockedUntil
	user.UpdatedAt = now

	locked := IsLockedOut(lockedUntil, now)
	if locked {
		g.logger.WarnContext(ctx, "account locked",
			"event", "account_locked",
			"user_id", user.ID.String(),
			"tenant_id", user.TenantID.String(),
			"locked_until", lockedUntil)
	}
	return locked, nil
}

// OnSuccess clears the counter and lock and stamps last login.
func (g *LockoutGuard) OnSuccess(ctx context.Context, user *StaffUser) error {
	now := g.clock.Now()
	if err := g.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return oops.Code("LOCKOUT_RESET_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now
	user.UpdatedAt = now
	return nil
}
