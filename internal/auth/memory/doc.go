// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package memory provides in-process implementations of the auth
// repositories. Every operation holds a mutex, so the atomicity the
// PostgreSQL implementations get from single statements holds here too.
// Values are copied on the way in and out.
package memory
