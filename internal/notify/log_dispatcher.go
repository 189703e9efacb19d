// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

// Package notify delivers password reset links.
package notify

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
)

// LogDispatcher writes reset notices to the log instead of sending mail.
// The link is logged under the redacted "token" key unless revealLinks is
// set, which is meant for local development only.
type LogDispatcher struct {
	baseURL     *url.URL
	revealLinks bool
	logger      *slog.Logger
}

var _ auth.ResetDispatcher = (*LogDispatcher)(nil)

// NewLogDispatcher creates a LogDispatcher building links from baseURL.
func NewLogDispatcher(baseURL string, revealLinks bool, logger *slog.Logger) (*LogDispatcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_BASE_URL").
			With("base_url", baseURL).
			Errorf("reset base URL must be absolute")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &LogDispatcher{baseURL: u, revealLinks: revealLinks, logger: logger}, nil
}

// ResetLink returns the page URL for token.
func (d *LogDispatcher) ResetLink(token string) string {
	u := *d.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// DispatchReset logs the reset notice.
func (d *LogDispatcher) DispatchReset(ctx context.Context, notice auth.ResetNotice) error {
	if notice.User == nil {
		return oops.Code("NOTIFY_INVALID_NOTICE").Errorf("notice has no recipient")
	}
	linkKey := "token"
	if d.revealLinks {
		linkKey = "reset_link"
	}
	d.logger.InfoContext(ctx, "password reset link issued",
		"event", "reset_link",
		"user_id", notice.User.ID.String(),
		"email", notice.User.Email,
		"expires_at", notice.ExpiresAt,
		linkKey, d.ResetLink(notice.Token))
	return nil
}
