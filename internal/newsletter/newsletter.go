// Package newsletter wires the mailing-list service and its HTTP handler.
package newsletter

import (
	"log/slog"

	"newsletter/internal/newsletter/handler"
	"newsletter/internal/newsletter/metrics"
	"newsletter/internal/newsletter/service"
	"newsletter/pkg/email"
)

// Service exposes mailing-list membership operations.
type Service = service.Service

// Store is the persistence contract every subscription backend satisfies.
type Store = service.Store

// Handler wires HTTP endpoints to the newsletter service.
type Handler = handler.Handler

// NewService constructs the newsletter service. publisher and m may be nil.
func NewService(store Store, logger *slog.Logger, publisher service.AuditPublisher, m *metrics.Metrics, policy email.CasePolicy) *Service {
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithCasePolicy(policy),
	}
	if publisher != nil {
		opts = append(opts, service.WithAuditPublisher(publisher))
	}
	return service.New(store, opts...)
}
