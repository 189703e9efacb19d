// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes = 32        // 32 bytes = 64 hex chars
	ResetTokenTTL   = time.Hour // 1 hour expiry

	// MinPasswordLength is the shortest password accepted by a reset.
	MinPasswordLength = 8
)

// PasswordResetToken is a single-use credential for setting a new password.
// Used only ever moves from false to true.
type PasswordResetToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TenantID  uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// NewPasswordResetToken creates a validated PasswordResetToken.
func NewPasswordResetToken(user *StaffUser, tokenHash string, now time.Time) (*PasswordResetToken, error) {
	if user == nil || user.ID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	return &PasswordResetToken{
		ID:        ulid.Make(),
		UserID:    user.ID,
		TenantID:  user.TenantID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}, nil
}

// RedeemableAt reports whether the token is unused and unexpired at t.
func (r *PasswordResetToken) RedeemableAt(t time.Time) bool {
	return !r.Used && t.Before(r.ExpiresAt)
}

// GenerateResetToken creates a secure random token and its hash.
// The plaintext token is sent to the user; the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the SHA256 hash of a reset token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokenRepository manages password reset token persistence.
type ResetTokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *PasswordResetToken) error

	// GetByTokenHash retrieves a token by hash regardless of state.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)

	// Consume marks the token used if it is unused and unexpired at now, in a
	// single conditional update. Returns ErrNotFound when no token qualifies,
	// so of two concurrent calls at most one succeeds.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*PasswordResetToken, error)

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes used tokens and tokens expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetNotice is handed to a ResetDispatcher when a reset is requested.
type ResetNotice struct {
	User      *StaffUser
	Token     string
	ExpiresAt time.Time
}

// ResetDispatcher delivers reset links to users.
type ResetDispatcher interface {
	DispatchReset(ctx context.Context, notice ResetNotice) error
}
