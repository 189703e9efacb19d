// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// poolIface is the subset of pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it in unit tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func parseID(field, raw string) (ulid.ULID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code("DB_INVALID_ID").
			With("field", field).
			With("value", raw).
			Wrap(err)
	}
	return id, nil
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, oops.Code("DB_INVALID_TENANT").
			With("value", raw).
			Wrap(err)
	}
	return id, nil
}

// tenantArg renders an optional tenant filter as a nullable parameter.
func tenantArg(tenantID *uuid.UUID) *string {
	if tenantID == nil {
		return nil
	}
	s := tenantID.String()
	return &s
}
