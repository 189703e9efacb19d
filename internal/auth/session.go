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

// Session token configuration.
const (
	SessionTokenBytes = 32                  // 32 bytes = 64 hex chars
	SessionTTL        = 8 * time.Hour       // default lifetime
	RememberMeTTL     = 30 * 24 * time.Hour // remember-me lifetime
)

// SessionTTLFor returns the lifetime of a new session.
func SessionTTLFor(rememberMe bool) time.Duration {
	if rememberMe {
		return RememberMeTTL
	}
	return SessionTTL
}

// ClientMeta describes the client a session was issued to.
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

// Session is a server-side login session. Only the hash of its token is stored.
type Session struct {
	ID             ulid.ULID
	UserID         ulid.ULID
	TenantID       uuid.UUID
	TokenHash      string
	UserAgent      string
	IPAddress      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastActivityAt time.Time
}

// NewSession creates a validated Session. ExpiresAt is fixed here and never extended.
func NewSession(user *StaffUser, tokenHash string, meta ClientMeta, now time.Time, ttl time.Duration) (*Session, error) {
	if user == nil || user.ID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if user.TenantID == uuid.Nil {
		return nil, oops.Code("SESSION_INVALID_TENANT").Errorf("tenant ID cannot be nil")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").With("ttl", ttl).Errorf("ttl must be positive")
	}

	return &Session{
		ID:             ulid.Make(),
		UserID:         user.ID,
		TenantID:       user.TenantID,
		TokenHash:      tokenHash,
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastActivityAt: now,
	}, nil
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// ListByUser retrieves all sessions for a user, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*Session, error)

	// Touch sets LastActivityAt. ExpiresAt is never modified.
	Touch(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes a session by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByTokenHash removes a session by token hash. Deleting a missing
	// session is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all sessions for a user and returns the count.
	DeleteByUser(ctx context.Context, userID ulid.ULID) (int64, error)

	// DeleteExpired removes sessions whose expiry is at or before now and
	// returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
