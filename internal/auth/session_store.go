// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionStore issues, validates and revokes sessions.
type SessionStore struct {
	sessions SessionRepository
	users    UserRepository
	clock    Clock
	logger   *slog.Logger
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(sessions SessionRepository, users UserRepository) (*SessionStore, error) {
	return NewSessionStoreWithLogger(sessions, users, slog.New(slog.DiscardHandler))
}

// NewSessionStoreWithLogger creates a SessionStore with a custom logger.
func NewSessionStoreWithLogger(sessions SessionRepository, users UserRepository, logger *slog.Logger) (*SessionStore, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &SessionStore{sessions: sessions, users: users, clock: SystemClock, logger: logger}, nil
}

func invalidSession() error {
	return oops.Code(CodeSessionInvalid).Errorf("invalid or expired session")
}

// Create issues a new session for user and returns it with the plaintext token.
func (s *SessionStore) Create(ctx context.Context, user *StaffUser, rememberMe bool, meta ClientMeta) (*Session, string, error) {
	if user == nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").Errorf("user is required")
	}
	if !user.IsActive {
		return nil, "", oops.Code("SESSION_USER_INACTIVE").
			With("user_id", user.ID.String()).
			Errorf("cannot create a session for an inactive user")
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(user, tokenHash, meta, s.clock.Now(), SessionTTLFor(rememberMe))
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "new session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return session, token, nil
}

// Validate resolves a token to its session and active owner.
// Unknown, expired or orphaned tokens return a SESSION_INVALID error.
// Storage failures return SESSION_VALIDATE_FAILED; callers must deny access.
func (s *SessionStore) Validate(ctx context.Context, token string) (*Session, *StaffUser, error) {
	if token == "" {
		return nil, nil, invalidSession()
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, invalidSession()
		}
		return nil, nil, oops.Code(CodeSessionValidateFailed).
			With("operation", "get session by token hash").
			Wrap(err)
	}

	now := s.clock.Now()
	if session.IsExpiredAt(now) {
		s.teardown(ctx, session, RevokeReasonExpired)
		return nil, nil, invalidSession()
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.teardown(ctx, session, RevokeReasonInactive)
			return nil, nil, invalidSession()
		}
		return nil, nil, oops.Code(CodeSessionValidateFailed).
			With("operation", "get session owner").
			With("session_id", session.ID.String()).
			Wrap(err)
	}

	if !user.IsActive {
		s.logger.InfoContext(ctx, "revoking session of inactive user",
			"event", "session_revoked_inactive",
			"session_id", session.ID.String(),
			"user_id", user.ID.String())
		s.teardown(ctx, session, RevokeReasonInactive)
		return nil, nil, invalidSession()
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		s.logger.WarnContext(ctx, "best-effort session touch failed",
			"operation", "touch",
			"session_id", session.ID.String(),
			"error", err)
	} else {
		session.LastActivityAt = now
	}

	return session, user, nil
}

// teardown deletes a session that failed validation. Validation already
// denies access, so a delete failure is only logged.
func (s *SessionStore) teardown(ctx context.Context, session *Session, reason string) {
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "best-effort session delete failed",
			"operation", "delete",
			"reason", reason,
			"session_id", session.ID.String(),
			"error", err)
		return
	}
	recordRevoked(reason, 1)
}

// Revoke deletes the session for token. Revoking an unknown token succeeds.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	recordRevoked(RevokeReasonLogout, 1)
	return nil
}

// RevokeAllForUser deletes every session owned by userID.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID ulid.ULID) (int64, error) {
	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	recordRevoked(RevokeReasonAll, n)
	return n, nil
}

// ListActive returns the unexpired sessions of userID, newest first.
func (s *SessionStore) ListActive(ctx context.Context, userID ulid.ULID) ([]*Session, error) {
	all, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	now := s.clock.Now()
	active := make([]*Session, 0, len(all))
	for _, session := range all {
		if !session.IsExpiredAt(now) {
			active = append(active, session)
		}
	}
	return active, nil
}

// SweepExpired deletes expired sessions and returns the count.
func (s *SessionStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	recordRevoked(RevokeReasonExpired, n)
	return n, nil
}
