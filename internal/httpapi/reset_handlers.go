// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/csrf"
	"github.com/tablewise/staffauth/pkg/errutil"
)

const forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."

type forgotPasswordRequest struct {
	Email     string `json:"email"`
	TenantID  string `json:"tenantId"`
	CSRFToken string `json:"csrfToken"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	CSRFToken   string `json:"csrfToken"`
}

type validateTokenResponse struct {
	Valid bool `json:"valid"`
}

// handleForgotPassword answers identically whether or not the account exists.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := csrf.Check(r.Header.Get(csrf.HeaderName), req.CSRFToken); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var tenantID *uuid.UUID
	if raw := strings.TrimSpace(req.TenantID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, h.logger, badRequest("tenantId must be a UUID"))
			return
		}
		tenantID = &id
	}

	// A spent or unreachable budget still gets the generic answer; only
	// dispatch is skipped.
	allowed, _, err := h.consume(r, resetLimitPrefix)
	if err != nil {
		errutil.LogError(r.Context(), h.logger, "password reset rate limit check failed", oops.
			With("request_id", RequestIDFrom(r.Context())).
			Wrap(err))
	}
	if !allowed {
		writeJSON(w, http.StatusOK, successResponse{Success: true, Message: forgotPasswordMessage})
		return
	}

	if err := h.resets.Request(r.Context(), req.Email, tenantID); err != nil {
		errutil.LogError(r.Context(), h.logger, "password reset request failed", oops.
			With("request_id", RequestIDFrom(r.Context())).
			Wrap(err))
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: forgotPasswordMessage})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := csrf.Check(r.Header.Get(csrf.HeaderName), req.CSRFToken); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.resets.Confirm(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Password has been reset."})
}

func (h *Handler) handleValidateResetToken(w http.ResponseWriter, r *http.Request) {
	err := h.resets.ValidateToken(r.Context(), r.URL.Query().Get("token"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, validateTokenResponse{Valid: true})
	case errutil.CodeOf(err) == auth.CodeResetTokenInvalid:
		writeJSON(w, http.StatusOK, validateTokenResponse{Valid: false})
	default:
		writeError(w, r, h.logger, err)
	}
}
