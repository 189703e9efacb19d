// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError records err at error level. ctx reaches the handler so trace and
// span ids from the active request are attached. oops errors add their code
// and context attributes.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	if err == nil {
		return
	}
	attrs := []slog.Attr{slog.String("error", err.Error())}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := CodeOf(err); code != "" {
			attrs = append(attrs, slog.String("code", code))
		}
		if kv := oopsErr.Context(); len(kv) > 0 {
			attrs = append(attrs, slog.Any("context", kv))
		}
	}
	logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
