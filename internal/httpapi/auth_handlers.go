// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/csrf"
	"github.com/tablewise/staffauth/pkg/errutil"
)

// Rate limit key prefixes, one budget per surface.
const (
	loginLimitPrefix = "login:"
	resetLimitPrefix = "reset:"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	CSRFToken  string `json:"csrfToken"`
}

type userView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	TenantID  string     `json:"tenantId"`
	LastLogin *time.Time `json:"lastLogin"`
}

func newUserView(u *auth.StaffUser) userView {
	return userView{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		TenantID:  u.TenantID.String(),
		LastLogin: u.LastLogin,
	}
}

type loginResponse struct {
	User        userView `json:"user"`
	RedirectURL string   `json:"redirectUrl"`
}

type meResponse struct {
	User userView `json:"user"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := csrf.Issue()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

// consume takes one attempt from the caller's budget for prefix. retry is
// the whole seconds until the budget resets when the attempt is refused.
func (h *Handler) consume(r *http.Request, prefix string) (allowed bool, retry int, err error) {
	res, err := h.limiter.Check(r.Context(), prefix+clientIP(r, h.opts.TrustProxy))
	if err != nil {
		return false, 0, err
	}
	if res.Allowed {
		return true, 0, nil
	}

	retry = max(int(res.RetryAfter(h.now())/time.Second), 1)
	h.logger.InfoContext(r.Context(), "rate limited",
		"event", "rate_limited",
		"surface", prefix[:len(prefix)-1],
		"retry_after_s", retry)
	return false, retry, nil
}

// allow is consume for surfaces that answer a refusal with 429. It writes
// the response and returns false when the request must stop.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, prefix string) bool {
	allowed, retry, err := h.consume(r, prefix)
	if err != nil {
		writeError(w, r, h.logger, err)
		return false
	}
	if allowed {
		return true
	}

	p := problemFor(CodeRateLimited)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeJSON(w, p.status, errorResponse{Error: responseError{
		Code:       p.code,
		Message:    p.message,
		RetryAfter: retry,
	}})
	return false
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := csrf.Check(r.Header.Get(csrf.HeaderName), req.CSRFToken); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !h.allow(w, r, loginLimitPrefix) {
		return
	}

	result, err := h.auth.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		UserAgent:  r.UserAgent(),
		IPAddress:  clientIP(r, h.opts.TrustProxy),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	setSessionCookie(w, result.Token, auth.SessionTTLFor(req.RememberMe), h.opts.SecureCookies)
	writeJSON(w, http.StatusOK, loginResponse{
		User:        newUserView(result.User),
		RedirectURL: result.RedirectURL,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			errutil.LogError(r.Context(), h.logger, "logout failed", oops.
				With("request_id", RequestIDFrom(r.Context())).
				Wrap(err))
		}
	}
	clearSessionCookie(w, h.opts.SecureCookies)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.logger, oops.Code(CodeUnauthorized).Errorf("no principal"))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: newUserView(p.User)})
}
