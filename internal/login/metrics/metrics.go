// Package metrics exposes the Prometheus instrumentation for the login
// service. Counters register on the default registry and are served by the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginOutcomes counts authentication decisions per portal.
	LoginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_login_outcomes_total",
		Help: "Login attempt outcomes by portal (completed, otp_required, rejected).",
	}, []string{"portal", "outcome"})

	// OTPSent counts issued one-time codes, including resends.
	OTPSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_otp_sent_total",
		Help: "One-time codes issued, by purpose.",
	}, []string{"purpose"})

	// OTPVerifications counts verification results.
	OTPVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportline_otp_verifications_total",
		Help: "OTP verification results (completed, invalid, expired, forbidden, unknown).",
	}, []string{"result"})
)
