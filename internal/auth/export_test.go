// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

// SetClock replaces the clock used for expiry decisions.
func (s *SessionStore) SetClock(c Clock) { s.clock = c }

// SetClock replaces the clock used for expiry decisions.
func (s *Service) SetClock(c Clock) { s.lockout.clock = c }

// SetClock replaces the clock used for expiry decisions.
func (s *PasswordResetService) SetClock(c Clock) { s.clock = c }

// SetClock replaces the clock used for expiry decisions.
func (g *LockoutGuard) SetClock(c Clock) { g.clock = c }

const DummyPasswordHash = dummyPasswordHash
