// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import "github.com/prometheus/client_golang/prometheus"

// Login outcome labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeError              = "error"
)

// Session revocation reasons.
const (
	RevokeReasonLogout   = "logout"
	RevokeReasonInactive = "inactive"
	RevokeReasonExpired  = "expired"
	RevokeReasonAll      = "revoke_all"
)

// LoginAttempts counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "staffauth_login_attempts_total",
		Help: "Total number of staff login attempts",
	},
	[]string{"outcome"},
)

// SessionsRevoked counts deleted sessions by reason.
var SessionsRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "staffauth_sessions_revoked_total",
		Help: "Total number of sessions revoked",
	},
	[]string{"reason"},
)

// ResetRequests counts password reset requests by outcome.
var ResetRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "staffauth_password_reset_requests_total",
		Help: "Total number of password reset requests",
	},
	[]string{"outcome"},
)

// ResetConfirmations counts password reset redemptions by outcome.
var ResetConfirmations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "staffauth_password_reset_confirmations_total",
		Help: "Total number of password reset confirmations",
	},
	[]string{"outcome"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(SessionsRevoked)
	reg.MustRegister(ResetRequests)
	reg.MustRegister(ResetConfirmations)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func recordRevoked(reason string, n int64) {
	if n > 0 {
		SessionsRevoked.WithLabelValues(reason).Add(float64(n))
	}
}
