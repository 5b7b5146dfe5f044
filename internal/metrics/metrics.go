// Package metrics exposes Prometheus counters for the auth flows.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

type Metrics struct {
	OTPRequests     *prometheus.CounterVec
	OTPChecks       *prometheus.CounterVec
	Registrations   *prometheus.CounterVec
	Logins          *prometheus.CounterVec
	PasswordResets  *prometheus.CounterVec
	GuardRejections *prometheus.CounterVec
}

// New registers the auth counters on reg. Each test should pass its own
// prometheus.NewRegistry to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_otp_requests_total",
			Help: "OTP challenges requested, by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		OTPChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_otp_checks_total",
			Help: "OTP codes checked, by purpose and outcome",
		}, []string{"purpose", "outcome"}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_registrations_total",
			Help: "Signup attempts, by outcome",
		}, []string{"outcome"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_logins_total",
			Help: "Login attempts, by outcome",
		}, []string{"outcome"}),
		PasswordResets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_password_resets_total",
			Help: "Password reset attempts, by outcome",
		}, []string{"outcome"}),
		GuardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrolens_auth_guard_rejections_total",
			Help: "Requests rejected by the session guard, by reason",
		}, []string{"reason"}),
	}
}

// Noop returns counters bound to a private registry that is never scraped.
func Noop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) OTPRequested(purpose, outcome string) {
	m.OTPRequests.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) OTPChecked(purpose, outcome string) {
	m.OTPChecks.WithLabelValues(purpose, outcome).Inc()
}

func (m *Metrics) Registered(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LoggedIn(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PasswordReset(outcome string) {
	m.PasswordResets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GuardRejected(reason string) {
	m.GuardRejections.WithLabelValues(reason).Inc()
}
