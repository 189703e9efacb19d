// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package httpapi exposes staff authentication over HTTP.
//
// The router serves the JSON auth API under /api/auth, a tenant scoped
// sample API under /api/tenants and the role dashboards. Protected routes go
// through Guard, which resolves the session cookie to a Principal stored in
// the request context. Handlers read it with PrincipalFrom.
package httpapi
