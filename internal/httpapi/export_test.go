// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import "time"

// SetNow replaces the clock used for Retry-After.
func (h *Handler) SetNow(now func() time.Time) { h.now = now }

var ClientIP = clientIP
