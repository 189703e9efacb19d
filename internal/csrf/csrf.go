// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package csrf implements stateless double-submit anti-forgery tokens.
// The server keeps no record of issued tokens; a request passes when the
// header and body carry the same non-empty value.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/samber/oops"
)

// Wire names for the token.
const (
	HeaderName = "X-CSRF-Token"
	FieldName  = "csrfToken"
)

// TokenBytes is the entropy of an issued token.
const TokenBytes = 32

// CodeInvalid is the error code for a failed check.
const CodeInvalid = "CSRF_INVALID"

// Issue returns a fresh unguessable token.
func Issue() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("CSRF_ISSUE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Validate reports whether both tokens are present and equal.
func Validate(headerToken, bodyToken string) bool {
	if headerToken == "" || bodyToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(headerToken), []byte(bodyToken)) == 1
}

// Check is Validate returning a CSRF_INVALID error on failure.
func Check(headerToken, bodyToken string) error {
	if !Validate(headerToken, bodyToken) {
		return oops.Code(CodeInvalid).Errorf("invalid or missing CSRF token")
	}
	return nil
}
