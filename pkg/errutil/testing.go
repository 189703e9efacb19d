// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode fails t unless err is an oops error whose code, as CodeOf
// reports it to the HTTP layer, equals code.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	require.Error(t, err, "want error with code %s", code)
	_, ok := oops.AsOops(err)
	require.Truef(t, ok, "want oops error with code %s, got %T: %v", code, err, err)
	assert.Equal(t, code, CodeOf(err), "error: %v", err)
}

// AssertErrorContext fails t unless the oops context of err holds key = value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	got, ok := ContextValue(err, key)
	require.Truef(t, ok, "context key %q missing from %v", key, err)
	assert.Equal(t, value, got, "context key %q", key)
}
