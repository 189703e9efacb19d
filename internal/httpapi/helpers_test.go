// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/auth/memory"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/csrf"
	"github.com/tablewise/staffauth/internal/httpapi"
	"github.com/tablewise/staffauth/internal/ratelimit"
)

const testPassword = "correct horse battery"

// captureDispatcher records reset notices instead of delivering them.
type captureDispatcher struct {
	mu      sync.Mutex
	notices []auth.ResetNotice
}

func (d *captureDispatcher) DispatchReset(_ context.Context, n auth.ResetNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
	return nil
}

func (d *captureDispatcher) last(t *testing.T) auth.ResetNotice {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.notices, "no reset notice dispatched")
	return d.notices[len(d.notices)-1]
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notices)
}

type fixture struct {
	users      *memory.UserRepository
	hasher     auth.PasswordHasher
	dispatcher *captureDispatcher
	handler    *httpapi.Handler
	routes     http.Handler
}

type fixtureOption func(*httpapi.Deps, *httpapi.Options, *ratelimit.Config)

func withLimit(n int) fixtureOption {
	return func(_ *httpapi.Deps, _ *httpapi.Options, cfg *ratelimit.Config) { cfg.MaxAttempts = n }
}

func withLimiter(l ratelimit.Limiter) fixtureOption {
	return func(d *httpapi.Deps, _ *httpapi.Options, _ *ratelimit.Config) { d.Limiter = l }
}

func withAuthenticator(a httpapi.Authenticator) fixtureOption {
	return func(d *httpapi.Deps, _ *httpapi.Options, _ *ratelimit.Config) { d.Auth = a }
}

func withLogger(l *slog.Logger) fixtureOption {
	return func(d *httpapi.Deps, _ *httpapi.Options, _ *ratelimit.Config) { d.Logger = l }
}

func withOptions(mutate func(*httpapi.Options)) fixtureOption {
	return func(_ *httpapi.Deps, o *httpapi.Options, _ *ratelimit.Config) { mutate(o) }
}

// newFixture wires the real services to in-memory repositories.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	users := memory.NewUserRepository()
	hasher, err := auth.NewBcryptHasherWithCost(4)
	require.NoError(t, err)

	store, err := auth.NewSessionStore(memory.NewSessionRepository(), users)
	require.NoError(t, err)
	svc, err := auth.NewAuthService(users, store, hasher)
	require.NoError(t, err)
	dispatcher := &captureDispatcher{}
	resets, err := auth.NewPasswordResetService(users, memory.NewResetTokenRepository(), store, hasher, dispatcher)
	require.NoError(t, err)

	deps := httpapi.Deps{Auth: svc, Sessions: store, Resets: resets}
	options := httpapi.OptionsFromConfig(config.Default().HTTP)
	limitCfg := ratelimit.Config{}
	for _, opt := range opts {
		opt(&deps, &options, &limitCfg)
	}
	if deps.Limiter == nil {
		limiter := ratelimit.NewMemoryLimiter(limitCfg)
		t.Cleanup(limiter.Close)
		deps.Limiter = limiter
	}

	h, err := httpapi.NewHandler(deps, options)
	require.NoError(t, err)

	return &fixture{users: users, hasher: hasher, dispatcher: dispatcher, handler: h, routes: h.Routes()}
}

func (f *fixture) seed(t *testing.T, email string, role auth.Role) *auth.StaffUser {
	t.Helper()
	hash, err := f.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)
	u, err := auth.NewStaffUser(uuid.New(), email, "Staff "+string(role), hash, role)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.routes.ServeHTTP(rec, req)
	return rec
}

// postJSON sends body with a matching CSRF header and csrfToken field.
func (f *fixture) postJSON(t *testing.T, path string, body map[string]any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	token, err := csrf.Issue()
	require.NoError(t, err)
	if body == nil {
		body = map[string]any{}
	}
	body["csrfToken"] = token

	req := newJSONRequest(t, path, body)
	req.Header.Set(csrf.HeaderName, token)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return f.do(req)
}

func (f *fixture) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return f.do(req)
}

func (f *fixture) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return f.postJSON(t, "/api/auth/login", map[string]any{"email": email, "password": password})
}

// loginCookie logs in and returns the session cookie.
func (f *fixture) loginCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := f.login(t, email, testPassword)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := findCookie(rec, httpapi.SessionCookieName)
	require.NotNil(t, c)
	return c
}

func newJSONRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type apiError struct {
	Error struct {
		Code        string  `json:"code"`
		Message     string  `json:"message"`
		RetryAfter  int     `json:"retryAfter"`
		LockedUntil *string `json:"lockedUntil"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}
