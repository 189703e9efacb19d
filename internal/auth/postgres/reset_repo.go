// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

const resetColumns = `id, user_id, tenant_id::text, token_hash, expires_at, created_at, used`

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool poolIface
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool *pgxpool.Pool) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new reset token.
func (r *ResetTokenRepository) Create(ctx context.Context, token *auth.PasswordResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, tenant_id, token_hash, expires_at, created_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.TenantID.String(),
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
		token.Used,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a reset token by its hash.
func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+resetColumns+` FROM password_reset_tokens WHERE token_hash = $1`, tokenHash)

	token, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset token by hash").
			Wrap(err)
	}
	return token, nil
}

// Consume flips used in one conditional UPDATE. The token must be unexpired
// by both now and the database clock.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (*auth.PasswordResetToken, error) {
	row := r.pool.QueryRow(ctx, `UPDATE password_reset_tokens SET used = TRUE
		WHERE token_hash = $1 AND NOT used AND expires_at > GREATEST($2::timestamptz, now())
		RETURNING `+resetColumns, tokenHash, now)

	token, err := scanResetToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume reset token").
			Wrap(err)
	}
	return token, nil
}

// DeleteByUser removes all reset tokens for a user.
func (r *ResetTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID.String()); err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete reset tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes used tokens and tokens expired at now.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM password_reset_tokens
		WHERE used OR expires_at <= LEAST($1::timestamptz, now())`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanResetToken(row pgx.Row) (*auth.PasswordResetToken, error) {
	var (
		t         auth.PasswordResetToken
		idStr     string
		userIDStr string
		tenantStr string
	)
	err := row.Scan(&idStr, &userIDStr, &tenantStr, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset_token").
			Wrap(err)
	}

	if t.ID, err = parseID("id", idStr); err != nil {
		return nil, err
	}
	if t.UserID, err = parseID("user_id", userIDStr); err != nil {
		return nil, err
	}
	if t.TenantID, err = parseTenant(tenantStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
