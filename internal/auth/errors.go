// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced to the HTTP boundary.
const (
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked         = "AUTH_ACCOUNT_LOCKED"
	CodeForbidden             = "AUTH_FORBIDDEN"
	CodeEmailTaken            = "AUTH_EMAIL_TAKEN"
	CodeSessionInvalid        = "SESSION_INVALID"
	CodeSessionValidateFailed = "SESSION_VALIDATE_FAILED"
	CodeResetTokenInvalid     = "RESET_TOKEN_INVALID"
	CodeResetPasswordTooShort = "RESET_PASSWORD_TOO_SHORT"
	CodePasswordTooLong       = "AUTH_PASSWORD_TOO_LONG"
)
