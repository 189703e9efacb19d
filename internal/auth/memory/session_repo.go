// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]*auth.Session
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[ulid.ULID]*auth.Session)}
}

func copySession(s *auth.Session) *auth.Session {
	c := *s
	return &c
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.TokenHash == session.TokenHash {
			return oops.Code("SESSION_CREATE_FAILED").Errorf("duplicate token hash")
		}
	}
	r.sessions[session.ID] = copySession(session)
	return nil
}

// GetByTokenHash retrieves a session by token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			return copySession(s), nil
		}
	}
	return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// ListByUser retrieves all sessions for a user, newest first.
func (r *SessionRepository) ListByUser(_ context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*auth.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, copySession(s))
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// Touch sets LastActivityAt.
func (r *SessionRepository) Touch(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	s.LastActivityAt = at
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return oops.Code("SESSION_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// DeleteByTokenHash removes a session by token hash if present.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.sessions {
		if s.TokenHash == tokenHash {
			delete(r.sessions, id)
		}
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (r *SessionRepository) DeleteByUser(_ context.Context, userID ulid.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes sessions expired at now.
func (r *SessionRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
