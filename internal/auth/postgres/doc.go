// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
//
// Lockout counters and reset token redemption are each a single UPDATE so
// concurrent requests cannot double count or double redeem.
package postgres
