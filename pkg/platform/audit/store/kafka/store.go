// Package kafka publishes audit events to a Kafka topic. Publishing is guarded
// by a circuit breaker so a broker outage drops events quickly instead of
// stalling sign-in and link mutations.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "peoplehub/pkg/platform/audit"
	"peoplehub/pkg/platform/circuit"
)

var ErrCircuitOpen = errors.New("audit kafka circuit open")

// Producer is the subset of *kgo.Client the store uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Store struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	metrics  *Metrics
	logger   *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		s.breaker = b
	}
}

// NewClient builds a franz-go client producing to topic by default.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordDeliveryTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func New(producer Producer, topic string, opts ...Option) *Store {
	s := &Store{
		producer: producer,
		topic:    topic,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("audit-kafka")
	}
	return s
}

// payload is the JSON document written as the record value.
type payload struct {
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	ProfileID  string `json:"profile_id,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Action     string `json:"action"`
	Email      string `json:"email,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Device     string `json:"device,omitempty"`
	ClientIP   string `json:"client_ip,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
}

// Append produces one record keyed by profile id so events for a profile stay
// ordered within a partition.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		s.metrics.incDropped()
		return ErrCircuitOpen
	}

	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	value, err := json.Marshal(payload{
		Category:   string(category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		ProfileID:  string(event.ProfileID),
		IdentityID: string(event.IdentityID),
		Action:     event.Action,
		Email:      event.Email,
		Reason:     event.Reason,
		Device:     event.Device,
		ClientIP:   event.ClientIP,
		RequestID:  event.RequestID,
		ActorID:    event.ActorID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ProfileID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		_, change := s.breaker.RecordFailure()
		s.metrics.incFailures()
		if change.Opened {
			s.metrics.setBreakerState(true)
			s.logger.WarnContext(ctx, "audit kafka circuit opened", "topic", s.topic, "error", err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}

	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.metrics.setBreakerState(false)
		s.logger.InfoContext(ctx, "audit kafka circuit closed", "topic", s.topic)
	}
	s.metrics.incPublished()
	return nil
}
