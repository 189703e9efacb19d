// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

// ResetTokenRepository implements auth.ResetTokenRepository in memory.
type ResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*auth.PasswordResetToken
}

// NewResetTokenRepository creates an empty ResetTokenRepository.
func NewResetTokenRepository() *ResetTokenRepository {
	return &ResetTokenRepository{tokens: make(map[string]*auth.PasswordResetToken)}
}

func copyReset(t *auth.PasswordResetToken) *auth.PasswordResetToken {
	c := *t
	return &c
}

// Create stores a new token.
func (r *ResetTokenRepository) Create(_ context.Context, token *auth.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.TokenHash]; ok {
		return oops.Code("RESET_CREATE_FAILED").Errorf("duplicate token hash")
	}
	r.tokens[token.TokenHash] = copyReset(token)
	return nil
}

// GetByTokenHash retrieves a token by hash.
func (r *ResetTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copyReset(t), nil
}

// Consume flips Used on a redeemable token. Check and flip happen under one lock.
func (r *ResetTokenRepository) Consume(_ context.Context, tokenHash string, now time.Time) (*auth.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok || !t.RedeemableAt(now) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	t.Used = true
	return copyReset(t), nil
}

// DeleteByUser removes all tokens for a user.
func (r *ResetTokenRepository) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, hash)
		}
	}
	return nil
}

// DeleteExpired removes used tokens and tokens expired at now.
func (r *ResetTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.tokens {
		if !t.RedeemableAt(now) {
			delete(r.tokens, hash)
			n++
		}
	}
	return n, nil
}

var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
