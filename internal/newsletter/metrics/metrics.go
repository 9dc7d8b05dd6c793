package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the newsletter module.
type Metrics struct {
	Subscriptions      prometheus.Counter
	Unsubscriptions    prometheus.Counter
	SubscribeConflicts prometheus.Counter
	MailingListSize    prometheus.Gauge
	OperationDuration  *prometheus.HistogramVec
}

// New creates the newsletter metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Subscriptions: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_subscriptions_total",
			Help: "Total number of successful subscriptions",
		}),
		Unsubscriptions: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_unsubscriptions_total",
			Help: "Total number of successful unsubscriptions",
		}),
		SubscribeConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "newsletter_subscribe_conflicts_total",
			Help: "Subscribe attempts rejected because the email was already subscribed",
		}),
		MailingListSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "newsletter_mailing_list_size",
			Help: "Number of subscriptions seen by the last mailing-list read",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsletter_operation_duration_seconds",
			Help:    "Duration of newsletter service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementSubscriptions() {
	m.Subscriptions.Inc()
}

func (m *Metrics) IncrementUnsubscriptions() {
	m.Unsubscriptions.Inc()
}

func (m *Metrics) IncrementSubscribeConflicts() {
	m.SubscribeConflicts.Inc()
}

// SetMailingListSize records the length of the list just read.
func (m *Metrics) SetMailingListSize(n int) {
	m.MailingListSize.Set(float64(n))
}

// ObserveOperation records the duration of one service operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
