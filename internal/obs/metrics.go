// Package obs holds the Prometheus collectors for the portal.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups RPC and domain collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	reg prometheus.Gatherer

	rpcTotal    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec

	provisioned  *prometheus.CounterVec
	provisionErr *prometheus.CounterVec
	walletTx     *prometheus.CounterVec
	logins       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		reg: reg,
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_rpc_requests_total",
			Help: "Total number of gRPC requests.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_rpc_duration_seconds",
			Help:    "gRPC request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		provisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_principals_provisioned_total",
			Help: "Principals created, by role.",
		}, []string{"role"}),
		provisionErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_provisioning_failures_total",
			Help: "Rejected provisioning requests, by role and reason.",
		}, []string{"role", "reason"}),
		walletTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_wallet_transactions_total",
			Help: "Wallet transactions appended, by direction.",
		}, []string{"direction"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.rpcTotal, m.rpcDuration, m.provisioned, m.provisionErr, m.walletTx, m.logins)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveRPC records one finished call.
func (m *Metrics) ObserveRPC(method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.rpcTotal.WithLabelValues(method, code).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(took.Seconds())
}

// Provisioned counts a committed principal of role.
func (m *Metrics) Provisioned(role string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(role).Inc()
}

// ProvisionFailed counts a rolled back provisioning request.
func (m *Metrics) ProvisionFailed(role, reason string) {
	if m == nil {
		return
	}
	m.provisionErr.WithLabelValues(role, reason).Inc()
}

// WalletTransaction counts an appended entry; direction is credit, debit or zero.
func (m *Metrics) WalletTransaction(direction string) {
	if m == nil {
		return
	}
	m.walletTx.WithLabelValues(direction).Inc()
}

// Login counts a login attempt by result.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}
