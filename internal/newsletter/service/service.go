// Package service holds the newsletter business rules: normalization,
// validation, uniqueness translation and audit emission.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"newsletter/internal/newsletter/metrics"
	"newsletter/internal/newsletter/models"
	"newsletter/pkg/attrs"
	dErrors "newsletter/pkg/domain-errors"
	"newsletter/pkg/email"
	"newsletter/pkg/platform/audit"
	"newsletter/pkg/platform/sentinel"
	"newsletter/pkg/requestcontext"
)

const tracerName = "newsletter/internal/newsletter/service"

// Store persists the mailing list. Add returns sentinel.ErrAlreadyUsed for a
// present email and Remove returns sentinel.ErrNotFound for an absent one.
type Store interface {
	Add(ctx context.Context, sub *models.Subscription) error
	Remove(ctx context.Context, email string) error
	List(ctx context.Context) ([]*models.Subscription, error)
	Ping(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages mailing-list membership.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	casePolicy     email.CasePolicy
	tracer         trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCasePolicy sets how emails are normalized before validation and storage.
func WithCasePolicy(p email.CasePolicy) Option {
	return func(s *Service) {
		s.casePolicy = p
	}
}

// New constructs a Service. Emails are lower-cased unless WithCasePolicy
// says otherwise.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		casePolicy: email.CaseLower,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe adds addr to the mailing list and returns the stored subscription.
// An address already on the list yields a conflict wrapping
// models.ErrAlreadySubscribed.
func (s *Service) Subscribe(ctx context.Context, addr string) (*models.Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "newsletter.Subscribe")
	defer span.End()
	defer s.observe("subscribe", time.Now())

	req := models.SubscriptionRequest{Email: addr}
	req.Normalize(s.casePolicy)
	if err := req.Validate(); err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeValidation, "invalid email"))
	}
	span.SetAttributes(attribute.String("newsletter.email", req.Email))

	sub := models.NewSubscription(req.Email, requestcontext.Now(ctx))
	if err := s.store.Add(ctx, sub); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			s.incrementConflicts()
			return nil, s.fail(span, dErrors.Wrap(models.ErrAlreadySubscribed, dErrors.CodeConflict, "email already subscribed"))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to subscribe"))
	}

	s.logAudit(ctx, string(audit.EventSubscribed), "email", sub.Email)
	if s.metrics != nil {
		s.metrics.IncrementSubscriptions()
	}
	return sub, nil
}

// Unsubscribe removes addr from the mailing list. An address not on the list
// yields a not-found error wrapping models.ErrNotSubscribed.
func (s *Service) Unsubscribe(ctx context.Context, addr string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "newsletter.Unsubscribe")
	defer span.End()
	defer s.observe("unsubscribe", time.Now())

	req := models.SubscriptionRequest{Email: addr}
	req.Normalize(s.casePolicy)
	if err := req.Validate(); err != nil {
		return "", s.fail(span, dErrors.Wrap(err, dErrors.CodeValidation, "invalid email"))
	}
	span.SetAttributes(attribute.String("newsletter.email", req.Email))

	if err := s.store.Remove(ctx, req.Email); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", s.fail(span, dErrors.Wrap(models.ErrNotSubscribed, dErrors.CodeNotFound, "email not subscribed"))
		}
		return "", s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to unsubscribe"))
	}

	s.logAudit(ctx, string(audit.EventUnsubscribed), "email", req.Email)
	if s.metrics != nil {
		s.metrics.IncrementUnsubscriptions()
	}
	return req.Email, nil
}

// List returns the mailing list, oldest subscription first. The slice is
// never nil.
func (s *Service) List(ctx context.Context) ([]*models.Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "newsletter.List")
	defer span.End()
	defer s.observe("list", time.Now())

	subs, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscriptions"))
	}
	if subs == nil {
		subs = []*models.Subscription{}
	}
	span.SetAttributes(attribute.Int("newsletter.list_size", len(subs)))
	if s.metrics != nil {
		s.metrics.SetMailingListSize(len(subs))
	}
	return subs, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	}
	return nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	// Audit is best effort: the mutation has already been committed.
	err := s.auditPublisher.Emit(ctx, audit.Event{
		ID:        uuid.NewString(),
		Timestamp: requestcontext.Now(ctx).UTC(),
		Action:    event,
		Subject:   attrs.ExtractString(attributes, "email"),
		RequestID: requestID,
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "event", event, "error", err, "request_id", requestID)
	}
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) incrementConflicts() {
	if s.metrics != nil {
		s.metrics.IncrementSubscribeConflicts()
	}
}
