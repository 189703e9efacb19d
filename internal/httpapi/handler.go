// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/config"
	"github.com/tablewise/staffauth/internal/observability"
	"github.com/tablewise/staffauth/internal/ratelimit"
)

// Authenticator logs staff in and out.
type Authenticator interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// PasswordResetter runs the password reset flow.
type PasswordResetter interface {
	Request(ctx context.Context, email string, tenantID *uuid.UUID) error
	ValidateToken(ctx context.Context, token string) error
	Confirm(ctx context.Context, token, newPassword string) error
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Auth     Authenticator
	Sessions SessionValidator
	Resets   PasswordResetter
	Limiter  ratelimit.Limiter
	// Metrics is optional.
	Metrics *observability.HTTPMetrics
	// Logger is optional and defaults to discarding.
	Logger *slog.Logger
}

// Options tune request handling.
type Options struct {
	SecureCookies bool
	TrustProxy    bool
	MaxBodyBytes  int64
	Routes        []config.RouteRule
}

// OptionsFromConfig copies the HTTP settings from cfg.
func OptionsFromConfig(cfg config.HTTPConfig) Options {
	return Options{
		SecureCookies: cfg.SecureCookies,
		TrustProxy:    cfg.TrustProxy,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Routes:        cfg.Routes,
	}
}

const defaultMaxBodyBytes = 64 << 10

// Handler serves the staff auth HTTP API.
type Handler struct {
	auth    Authenticator
	resets  PasswordResetter
	limiter ratelimit.Limiter
	guard   *Guard
	metrics *observability.HTTPMetrics
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps, opts Options) (*Handler, error) {
	if deps.Auth == nil {
		return nil, oops.Errorf("authenticator is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("session validator is required")
	}
	if deps.Resets == nil {
		return nil, oops.Errorf("password resetter is required")
	}
	if deps.Limiter == nil {
		return nil, oops.Errorf("rate limiter is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	policy, err := NewRoutePolicy(opts.Routes)
	if err != nil {
		return nil, err
	}
	guard, err := NewGuard(deps.Sessions, policy, opts.SecureCookies, logger)
	if err != nil {
		return nil, err
	}

	return &Handler{
		auth:    deps.Auth,
		resets:  deps.Resets,
		limiter: deps.Limiter,
		guard:   guard,
		metrics: deps.Metrics,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Router returns the routes without tracing.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, recoverer(h.logger), accessLog(h.logger, h.metrics), limitBody(h.opts.MaxBodyBytes))
	r.NotFoundHandler = http.HandlerFunc(h.notFound)

	api := r.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/csrf", h.handleCSRF).Methods(http.MethodGet)
	api.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/forgot-password", h.handleForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", h.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/reset-password/validate", h.handleValidateResetToken).Methods(http.MethodGet)
	api.Handle("/me", h.guard.Require()(http.HandlerFunc(h.handleMe))).Methods(http.MethodGet)

	tenants := r.PathPrefix("/api/tenants/{" + TenantVar + "}").Subrouter()
	tenants.Use(h.guard.Require())
	tenants.HandleFunc("/staff/me", h.handleTenantStaffMe).Methods(http.MethodGet)

	for _, role := range auth.Roles() {
		path := auth.DashboardPath(role)
		r.Handle(path, h.guard.Require()(http.HandlerFunc(h.handleDashboard))).Methods(http.MethodGet)
	}

	return r
}

// Routes returns the traced HTTP handler.
func (h *Handler) Routes() http.Handler {
	return otelhttp.NewHandler(h.Router(), "staffauth.http")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: responseError{Code: "not_found", Message: "not found"}})
		return
	}
	http.NotFound(w, r)
}

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return oops.Code(CodeRequestInvalid).With("limit", tooLarge.Limit).Errorf("request body too large")
		}
		return oops.Code(CodeRequestInvalid).Wrap(err)
	}
	return nil
}
