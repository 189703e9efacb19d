// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package errutil

import "github.com/samber/oops"

// CodeOf returns the oops code carried by err, or "" when there is none.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := any(oopsErr.Code()).(string); ok {
		return code
	}
	return ""
}

// ContextValue returns the oops context value stored under key.
func ContextValue(err error, key string) (any, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	v, ok := oopsErr.Context()[key]
	return v, ok
}
