// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package store owns the PostgreSQL schema and connection pool.
package store
