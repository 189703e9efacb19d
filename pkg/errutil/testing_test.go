// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/tablewise/staffauth/pkg/errutil"
)

// recorder captures failures instead of stopping the test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper()               {}
func (r *recorder) Name() string          { return "recorder" }
func (r *recorder) Errorf(string, ...any) { r.failed = true }
func (r *recorder) FailNow()              { r.failed = true; panic(r) }

func run(fn func(tb testing.TB)) (failed bool) {
	r := &recorder{}
	defer func() {
		if v := recover(); v != nil && v != any(r) {
			panic(v)
		}
		failed = r.failed
	}()
	fn(r)
	return r.failed
}

func TestAssertErrorCode(t *testing.T) {
	wrapped := oops.Code("RESET_CONFIRM_FAILED").Wrap(oops.Code("AUTH_PASSWORD_TOO_LONG").Errorf("too long"))

	assert.False(t, run(func(tb testing.TB) { errutil.AssertErrorCode(tb, wrapped, "AUTH_PASSWORD_TOO_LONG") }))
	assert.True(t, run(func(tb testing.TB) { errutil.AssertErrorCode(tb, wrapped, "RESET_CONFIRM_FAILED") }))
	assert.True(t, run(func(tb testing.TB) { errutil.AssertErrorCode(tb, errors.New("plain"), "X") }))
	assert.True(t, run(func(tb testing.TB) { errutil.AssertErrorCode(tb, nil, "X") }))
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("email", "ana@example.com").Errorf("taken")

	assert.False(t, run(func(tb testing.TB) { errutil.AssertErrorContext(tb, err, "email", "ana@example.com") }))
	assert.True(t, run(func(tb testing.TB) { errutil.AssertErrorContext(tb, err, "email", "bob@example.com") }))
	assert.True(t, run(func(tb testing.TB) { errutil.AssertErrorContext(tb, err, "tenant_id", nil) }))
}
