// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import "time"

// Clock supplies the current time to services that make expiry decisions.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
