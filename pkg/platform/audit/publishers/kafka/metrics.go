package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit delivery to Kafka.
type Metrics struct {
	Published   prometheus.Counter
	Failures    prometheus.Counter
	Dropped     prometheus.Counter
	BreakerOpen prometheus.Gauge
}

// NewMetrics registers the audit publisher metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_audit_published_total",
			Help: "Total number of audit events acknowledged by Kafka",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_audit_delivery_failures_total",
			Help: "Total number of audit events Kafka failed to accept",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_audit_dropped_total",
			Help: "Total number of audit events dropped while the circuit breaker was open",
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "newsletter_audit_circuit_breaker_open",
			Help: "Audit publisher circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncPublished() {
	m.Published.Inc()
}

func (m *Metrics) IncFailures() {
	m.Failures.Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}
