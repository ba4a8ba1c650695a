// Package metrics exposes Prometheus counters for application attempts,
// outbound dispatch and inbound mail.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autoapply"

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	AttemptsRunning prometheus.Gauge

	EmailsDispatched *prometheus.CounterVec

	InboundTotal    *prometheus.CounterVec
	AliasesExpired  prometheus.Counter
	PersistFailures prometheus.Counter
}

// New creates a Metrics backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Application attempts by ATS type and terminal status",
		}, []string{"ats", "status"}),
		AttemptDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Wall time of one application attempt",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"ats"}),
		AttemptsRunning: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempts_running",
			Help:      "Attempts currently driving a browser",
		}),
		EmailsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_dispatched_total",
			Help:      "Email applications handed to the mailer",
		}, []string{"result"}),
		InboundTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_emails_total",
			Help:      "Inbound emails by detected status and outcome",
		}, []string{"detected_status", "outcome"}),
		AliasesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aliases_expired_total",
			Help:      "Forwarding aliases marked expired by the sweep",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Attempts that could not be written to the store",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAttempt records a finished attempt.
func (m *Metrics) ObserveAttempt(ats, status string, took time.Duration) {
	if ats == "" {
		ats = "unknown"
	}
	m.AttemptsTotal.WithLabelValues(ats, status).Inc()
	m.AttemptDuration.WithLabelValues(ats).Observe(took.Seconds())
}

// ObserveInbound records one processed inbound email.
func (m *Metrics) ObserveInbound(detected string, success, forwarded bool) {
	outcome := "rejected"
	switch {
	case success && forwarded:
		outcome = "forwarded"
	case success:
		outcome = "not_forwarded"
	}
	if detected == "" {
		detected = "none"
	}
	m.InboundTotal.WithLabelValues(detected, outcome).Inc()
}
