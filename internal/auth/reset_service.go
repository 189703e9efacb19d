// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/pkg/errutil"
)

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID ulid.ULID) (int64, error)
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	users      UserRepository
	tokens     ResetTokenRepository
	sessions   SessionRevoker
	hasher     PasswordHasher
	dispatcher ResetDispatcher
	clock      Clock
	logger     *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	tokens ResetTokenRepository,
	sessions SessionRevoker,
	hasher PasswordHasher,
	dispatcher ResetDispatcher,
) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, tokens, sessions, hasher, dispatcher, slog.New(slog.DiscardHandler))
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService with a custom logger.
func NewPasswordResetServiceWithLogger(
	users UserRepository,
	tokens ResetTokenRepository,
	sessions SessionRevoker,
	hasher PasswordHasher,
	dispatcher ResetDispatcher,
	logger *slog.Logger,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("reset token repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session revoker is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if dispatcher == nil {
		return nil, oops.Errorf("reset dispatcher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &PasswordResetService{
		users:      users,
		tokens:     tokens,
		sessions:   sessions,
		hasher:     hasher,
		dispatcher: dispatcher,
		clock:      SystemClock,
		logger:     logger,
	}, nil
}

// Request issues a reset token for the active user with email and hands it
// to the dispatcher. Unknown and inactive accounts are a silent no-op so the
// caller cannot tell them apart. Only storage failures are returned.
func (s *PasswordResetService) Request(ctx context.Context, email string, tenantID *uuid.UUID) error {
	email = NormalizeEmail(email)
	if email == "" {
		ResetRequests.WithLabelValues("ignored").Inc()
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			ResetRequests.WithLabelValues("ignored").Inc()
			return nil
		}
		ResetRequests.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	if !user.IsActive {
		ResetRequests.WithLabelValues("ignored").Inc()
		return nil
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		ResetRequests.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	record, err := NewPasswordResetToken(user, hash, s.clock.Now())
	if err != nil {
		ResetRequests.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new reset token").
			Wrap(err)
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		ResetRequests.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"event", "reset_requested",
		"user_id", user.ID.String(),
		"tenant_id", user.TenantID.String())

	notice := ResetNotice{User: user, Token: token, ExpiresAt: record.ExpiresAt}
	if err := s.dispatcher.DispatchReset(ctx, notice); err != nil {
		errutil.LogError(ctx, s.logger, "reset dispatch failed", oops.
			With("user_id", user.ID.String()).
			Wrap(err))
	}

	ResetRequests.WithLabelValues("issued").Inc()
	return nil
}

// ValidateToken checks that token is redeemable without consuming it.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return invalidResetToken()
	}

	record, err := s.tokens.GetByTokenHash(ctx, HashResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken()
		}
		return oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset token").
			Wrap(err)
	}

	if !record.RedeemableAt(s.clock.Now()) {
		return invalidResetToken()
	}
	return nil
}

// Confirm redeems token and sets newPassword. Unknown, used and expired tokens
// all fail with the same RESET_TOKEN_INVALID error. On success every session
// of the user is revoked.
func (s *PasswordResetService) Confirm(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return oops.Code(CodeResetPasswordTooShort).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(newPassword) > MaxPasswordBytes {
		return ErrPasswordTooLong
	}
	if token == "" {
		return invalidResetToken()
	}

	// Hash first so a hashing failure leaves the token redeemable.
	newHash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := s.clock.Now()
	record, err := s.tokens.Consume(ctx, HashResetToken(token), now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			ResetConfirmations.WithLabelValues("invalid").Inc()
			return invalidResetToken()
		}
		ResetConfirmations.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}

	if err := s.users.ResetPassword(ctx, record.UserID, newHash, now); err != nil {
		ResetConfirmations.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "reset password").
			With("user_id", record.UserID.String()).
			Wrap(err)
	}

	revoked, err := s.sessions.RevokeAllForUser(ctx, record.UserID)
	if err != nil {
		ResetConfirmations.WithLabelValues(OutcomeError).Inc()
		return oops.Code("RESET_CONFIRM_FAILED").
			With("operation", "revoke sessions").
			With("user_id", record.UserID.String()).
			Wrap(err)
	}

	if err := s.tokens.DeleteByUser(ctx, record.UserID); err != nil {
		s.logger.WarnContext(ctx, "best-effort reset token cleanup failed",
			"operation", "delete_tokens",
			"user_id", record.UserID.String(),
			"error", err)
	}

	s.logger.InfoContext(ctx, "password reset confirmed",
		"event", "reset_confirmed",
		"user_id", record.UserID.String(),
		"sessions_revoked", revoked)
	ResetConfirmations.WithLabelValues(OutcomeSuccess).Inc()
	return nil
}

// SweepExpired removes used and expired reset tokens.
func (s *PasswordResetService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, oops.Code("RESET_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}

func invalidResetToken() error {
	return oops.Code(CodeResetTokenInvalid).Errorf("invalid or expired token")
}
