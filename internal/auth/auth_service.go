// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Service provides login and logout.
type Service struct {
	users    UserRepository
	sessions *SessionStore
	lockout  *LockoutGuard
	hasher   PasswordHasher
	logger   *slog.Logger
}

// LoginInput carries submitted credentials and client metadata.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	UserAgent  string
	IPAddress  string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	User        *StaffUser
	Session     *Session
	Token       string
	RedirectURL string
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions *SessionStore, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.New(slog.DiscardHandler))
}

// NewAuthServiceWithLogger creates a new Service with a custom logger.
func NewAuthServiceWithLogger(users UserRepository, sessions *SessionStore, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	lockout, err := NewLockoutGuardWithLogger(users, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:    users,
		sessions: sessions,
		lockout:  lockout,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is verified against when no usable account exists so
// response time does not reveal whether the email is registered.
// It is a well-formed cost 12 bcrypt string that matches no password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$2a$12$CCCCCCCCCCCCCCCCCCCCC.DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD"

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func accountLocked(until *time.Time) error {
	b := oops.Code(CodeAccountLocked)
	if until != nil {
		b = b.With("locked_until", *until)
	}
	return b.Errorf("account is temporarily locked")
}

// Login verifies credentials and opens a session.
// Unknown email, inactive account and wrong password share one error.
// A locked account is refused even with the correct password.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, oops.Code("REQUEST_INVALID").Errorf("email and password are required")
	}

	user, lookupErr := s.users.GetByEmail(ctx, email, nil)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		recordLogin(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	usable := lookupErr == nil && user.IsActive
	targetHash := dummyPasswordHash
	if usable {
		targetHash = user.PasswordHash
	}

	// Always verify so every branch pays the same hashing cost.
	valid, err := s.hasher.Verify(ctx, in.Password, targetHash)
	if err != nil {
		recordLogin(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(err)
	}

	if !usable {
		recordLogin(OutcomeInvalidCredentials)
		s.logger.InfoContext(ctx, "login failed", "event", "login_failed", "reason", "unknown_or_inactive")
		return nil, invalidCredentials()
	}

	if s.lockout.IsLocked(user) {
		recordLogin(OutcomeLocked)
		s.logger.InfoContext(ctx, "login refused for locked account",
			"event", "login_failed",
			"reason", "locked",
			"user_id", user.ID.String())
		return nil, accountLocked(user.LockedUntil)
	}

	if !valid {
		locked, err := s.lockout.OnFailure(ctx, user)
		if err != nil {
			recordLogin(OutcomeError)
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "record failure").
				Wrap(err)
		}
		s.logger.InfoContext(ctx, "login failed",
			"event", "login_failed",
			"reason", "bad_password",
			"user_id", user.ID.String(),
			"failed_attempts", user.FailedAttempts)
		if locked {
			recordLogin(OutcomeLocked)
			return nil, accountLocked(user.LockedUntil)
		}
		recordLogin(OutcomeInvalidCredentials)
		return nil, invalidCredentials()
	}

	if err := s.lockout.OnSuccess(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "best-effort lockout reset failed",
			"operation", "record_success",
			"user_id", user.ID.String(),
			"error", err)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	session, token, err := s.sessions.Create(ctx, user, in.RememberMe, ClientMeta{
		UserAgent: in.UserAgent,
		IPAddress: in.IPAddress,
	})
	if err != nil {
		recordLogin(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	recordLogin(OutcomeSuccess)
	return &LoginResult{
		User:        user,
		Session:     session,
		Token:       token,
		RedirectURL: DashboardPath(user.Role),
	}, nil
}

func (s *Service) upgradeHash(ctx context.Context, user *StaffUser, password string) {
	newHash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed",
			"operation", "hash",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "best-effort hash upgrade failed",
			"operation", "update_password_hash",
			"user_id", user.ID.String(),
			"error", err)
		return
	}
	user.PasswordHash = newHash
}

// Logout revokes the session for token. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "revoke session").
			Wrap(err)
	}
	return nil
}
