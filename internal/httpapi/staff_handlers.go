// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

type tenantStaffResponse struct {
	TenantID string   `json:"tenantId"`
	User     userView `json:"user"`
}

func (h *Handler) handleTenantStaffMe(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.logger, oops.Code(CodeUnauthorized).Errorf("no principal"))
		return
	}
	writeJSON(w, http.StatusOK, tenantStaffResponse{
		TenantID: p.User.TenantID.String(),
		User:     newUserView(p.User),
	})
}

// handleDashboard is a placeholder landing page; the UI is served elsewhere.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // client may disconnect
	fmt.Fprintf(w, "%s dashboard for %s\n", p.User.Role, p.User.Name)
}
