// Package kafka publishes audit events to a Kafka topic with franz-go.
//
// Emission is asynchronous and best effort: Emit hands the record to the
// client and returns. Delivery failures are logged, counted and fed into a
// circuit breaker; while the breaker is open events are dropped so a broker
// outage never slows down the request path.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "newsletter/pkg/platform/audit"
	"newsletter/pkg/platform/circuit"
)

const defaultFlushTimeout = 5 * time.Second

// producer is the subset of *kgo.Client the publisher needs.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// Publisher writes audit events as JSON records keyed by subject.
type Publisher struct {
	client       producer
	admin        *kadm.Client
	topic        string
	breaker      *circuit.Breaker
	logger       *slog.Logger
	metrics      *Metrics
	flushTimeout time.Duration
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// New connects a franz-go client to brokers. The connection is lazy; use
// EnsureTopic to verify the cluster is reachable at startup.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := newPublisher(cl, topic, opts...)
	p.admin = kadm.NewClient(cl)
	return p, nil
}

func newPublisher(client producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		client:       client,
		topic:        topic,
		breaker:      circuit.New("audit-kafka"),
		flushTimeout: defaultFlushTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureTopic creates the audit topic when it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	if p.admin == nil {
		return nil
	}
	resp, err := p.admin.CreateTopic(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}

// Emit queues event for delivery. It only fails when the event cannot be
// encoded; delivery errors are handled asynchronously.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		if p.metrics != nil {
			p.metrics.IncDropped()
		}
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	// the record outlives the request that produced it
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		p.onDelivery(ctx, r, err)
	})
	return nil
}

func (p *Publisher) onDelivery(ctx context.Context, r *kgo.Record, err error) {
	if err == nil {
		p.breaker.RecordSuccess()
		if p.metrics != nil {
			p.metrics.IncPublished()
			p.metrics.SetBreakerOpen(false)
		}
		return
	}

	opened := p.breaker.RecordFailure()
	if p.metrics != nil {
		p.metrics.IncFailures()
		p.metrics.SetBreakerOpen(p.breaker.IsOpen())
	}
	if p.logger != nil {
		p.logger.WarnContext(ctx, "audit event delivery failed",
			"topic", r.Topic,
			"key", string(r.Key),
			"error", err,
			"breaker", p.breaker.Name(),
			"breaker_opened", opened,
		)
	}
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
	defer cancel()
	err := p.client.Flush(ctx)
	p.client.Close()
	if err != nil {
		return fmt.Errorf("flush audit events: %w", err)
	}
	return nil
}
