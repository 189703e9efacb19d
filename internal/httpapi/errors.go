// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/csrf"
	"github.com/tablewise/staffauth/pkg/errutil"
)

// Codes raised by this package.
const (
	CodeRequestInvalid = "REQUEST_INVALID"
	CodeRateLimited    = "AUTH_RATE_LIMITED"
	CodeUnauthorized   = "AUTH_UNAUTHORIZED"
)

// Public error codes written to clients.
const (
	PublicInvalidRequest     = "invalid_request"
	PublicInvalidCredentials = "invalid_credentials"
	PublicAccountLocked      = "account_locked"
	PublicUnauthorized       = "unauthorized"
	PublicForbidden          = "forbidden"
	PublicRateLimited        = "rate_limited"
	PublicCSRFInvalid        = "csrf_invalid"
	PublicInvalidToken       = "invalid_token"
	PublicPasswordTooShort   = "password_too_short"
	PublicPasswordTooLong    = "password_too_long"
	PublicInternal           = "internal_error"
)

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code        string     `json:"code"`
	Message     string     `json:"message"`
	RetryAfter  int        `json:"retryAfter,omitempty"`
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

// problem is the client facing rendering of an error.
type problem struct {
	status  int
	code    string
	message string
}

// problemFor maps an error code to the status and message clients see.
// Unknown codes are internal errors and never expose the underlying text.
func problemFor(code string) problem {
	switch code {
	case CodeRequestInvalid:
		return problem{http.StatusBadRequest, PublicInvalidRequest, "invalid request"}
	case auth.CodeResetPasswordTooShort:
		return problem{http.StatusBadRequest, PublicPasswordTooShort, "password is too short"}
	case auth.CodePasswordTooLong:
		return problem{http.StatusBadRequest, PublicPasswordTooLong, "password is too long"}
	case auth.CodeResetTokenInvalid:
		return problem{http.StatusBadRequest, PublicInvalidToken, "invalid or expired token"}
	case auth.CodeInvalidCredentials:
		return problem{http.StatusUnauthorized, PublicInvalidCredentials, "invalid email or password"}
	case auth.CodeSessionInvalid, CodeUnauthorized:
		return problem{http.StatusUnauthorized, PublicUnauthorized, "authentication required"}
	case auth.CodeAccountLocked:
		return problem{http.StatusLocked, PublicAccountLocked, "account is temporarily locked"}
	case auth.CodeForbidden:
		return problem{http.StatusForbidden, PublicForbidden, "access denied"}
	case csrf.CodeInvalid:
		return problem{http.StatusForbidden, PublicCSRFInvalid, "invalid CSRF token"}
	case CodeRateLimited:
		return problem{http.StatusTooManyRequests, PublicRateLimited, "too many attempts, try again later"}
	default:
		return problem{http.StatusInternalServerError, PublicInternal, "internal server error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err for the client. Internal errors are logged with
// their full oops context; everything else is an expected outcome.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	p := problemFor(errutil.CodeOf(err))
	if p.status == http.StatusInternalServerError {
		errutil.LogError(r.Context(), logger, "request failed", oops.
			With("method", r.Method).
			With("path", r.URL.Path).
			With("request_id", RequestIDFrom(r.Context())).
			Wrap(err))
	}

	body := responseError{Code: p.code, Message: p.message}
	if p.status == http.StatusLocked {
		if v, ok := errutil.ContextValue(err, "locked_until"); ok {
			if until, ok := v.(time.Time); ok {
				body.LockedUntil = &until
			}
		}
	}
	writeJSON(w, p.status, errorResponse{Error: body})
}

func badRequest(msg string) error {
	return oops.Code(CodeRequestInvalid).Errorf("%s", msg)
}
