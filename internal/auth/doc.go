// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package auth provides staff authentication and session management.
//
// # Domain Types
//
// Domain types (StaffUser, Session, PasswordResetToken) should be created
// using their respective constructors:
//   - NewStaffUser - creates a StaffUser with validated email, role and hash
//   - NewSession - creates a Session with validated owner and expiry
//   - NewPasswordResetToken - creates a PasswordResetToken with validated owner and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login and logout
//   - SessionStore - session issue, validation and revocation
//   - LockoutGuard - per-account failed attempt tracking
//   - PasswordResetService - password reset flow
//
// Services are created with New*Service constructors that validate dependencies.
package auth
