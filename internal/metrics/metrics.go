// Package metrics defines Prometheus metrics for authentication and session lifecycle.
//
// Metric naming follows Prometheus conventions:
//   - storehub_auth_ prefix
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultInvalidToken       = "invalid_token"
	ResultAccountInactive    = "account_inactive"
	ResultError              = "error"
)

// Auth holds the authentication counters. A nil *Auth is valid and records nothing.
type Auth struct {
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         prometheus.Counter
	gateRejections  *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	loginDuration   prometheus.Histogram
}

// NewAuth creates the metrics and registers them with reg.
func NewAuth(reg prometheus.Registerer) *Auth {
	m := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storehub_auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storehub_auth_refreshes_total",
			Help: "Access token refreshes by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storehub_auth_logouts_total",
			Help: "Logout calls.",
		}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storehub_auth_gate_rejections_total",
			Help: "Requests rejected by the authentication gate or permission check, by reason.",
		}, []string{"reason"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storehub_auth_sessions_cleaned_total",
			Help: "Expired session records removed by the cleanup job.",
		}),
		loginDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storehub_auth_login_duration_seconds",
			Help:    "Login latency including password verification.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.logouts, m.gateRejections, m.sessionsCleaned, m.loginDuration)
	return m
}

// Login records a login attempt.
func (m *Auth) Login(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
	m.loginDuration.Observe(elapsed.Seconds())
}

// Refresh records a refresh attempt.
func (m *Auth) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// Logout records a logout.
func (m *Auth) Logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

// GateRejected records a rejected request.
func (m *Auth) GateRejected(reason string) {
	if m == nil {
		return
	}
	m.gateRejections.WithLabelValues(reason).Inc()
}

// SessionsCleaned adds n removed sessions.
func (m *Auth) SessionsCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsCleaned.Add(float64(n))
}

// Handler serves the metrics of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
