// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/pkg/errutil"
)

// TenantVar is the route variable holding the tenant a route is scoped to.
const TenantVar = "tenantID"

// SessionValidator resolves a session token to its session and owner.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Session, *auth.StaffUser, error)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Session *auth.Session
	User    *auth.StaffUser
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Guard.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Guard authenticates requests from the session cookie and enforces role,
// route policy and tenant checks.
type Guard struct {
	sessions      SessionValidator
	policy        *RoutePolicy
	secureCookies bool
	logger        *slog.Logger
}

// NewGuard creates a Guard. policy may be nil.
func NewGuard(sessions SessionValidator, policy *RoutePolicy, secureCookies bool, logger *slog.Logger) (*Guard, error) {
	if sessions == nil {
		return nil, oops.Errorf("session validator is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{sessions: sessions, policy: policy, secureCookies: secureCookies, logger: logger}, nil
}

// Require admits authenticated users holding one of roles, or any role when
// none are given. A matching route policy rule must be satisfied as well.
func (g *Guard) Require(roles ...auth.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := sessionToken(r)
			if token == "" {
				g.unauthenticated(w, r)
				return
			}

			session, user, err := g.sessions.Validate(ctx, token)
			if err != nil {
				if errutil.CodeOf(err) != auth.CodeSessionInvalid {
					errutil.LogError(ctx, g.logger, "session validation failed", err)
				}
				g.unauthenticated(w, r)
				return
			}

			if !auth.HasRole(user, roles...) {
				g.forbidden(w, r, user, "role")
				return
			}
			if required, ok := g.policy.RolesFor(r.URL.Path); ok && !auth.HasRole(user, required...) {
				g.forbidden(w, r, user, "route_policy")
				return
			}

			if raw, ok := mux.Vars(r)[TenantVar]; ok {
				tenantID, err := uuid.Parse(raw)
				if err != nil {
					writeError(w, r, g.logger, badRequest("tenant id must be a UUID"))
					return
				}
				if !auth.HasTenantAccess(user, &tenantID) {
					g.forbidden(w, r, user, "tenant")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, &Principal{Session: session, User: user})))
		})
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func (g *Guard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, g.secureCookies)
	if isAPIRequest(r) {
		writeError(w, r, g.logger, oops.Code(CodeUnauthorized).Errorf("authentication required"))
		return
	}
	http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

func (g *Guard) forbidden(w http.ResponseWriter, r *http.Request, user *auth.StaffUser, check string) {
	g.logger.InfoContext(r.Context(), "access denied",
		"event", "access_denied",
		"check", check,
		"user_id", user.ID.String(),
		"role", string(user.Role),
		"path", r.URL.Path)
	if isAPIRequest(r) {
		writeError(w, r, g.logger, oops.Code(auth.CodeForbidden).Errorf("access denied"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}
