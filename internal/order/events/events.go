// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"

	"tiptap/internal/order/models"
)

// Event types.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Event is the JSON payload written to the order topic, keyed by order ID.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OrderID       string          `json:"orderId"`
	Status        models.Status   `json:"status"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Total         decimal.Decimal `json:"total"`
	ItemCount     int             `json:"itemCount"`
	RequestID     string          `json:"requestId,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewEvent builds an event describing o.
func NewEvent(eventType string, o *models.Order, requestID string, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Total:         o.Total,
		ItemCount:     o.ItemCount(),
		RequestID:     requestID,
		OccurredAt:    at.UTC(),
	}
}

// producer is the subset of *kgo.Client the publisher uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher writes events synchronously to a single topic.
type Publisher struct {
	client producer
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher wraps an existing producer.
func NewPublisher(client producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewKafkaClient connects a franz-go client for the given brokers.
func NewKafkaClient(brokers []string, clientID string) (*kgo.Client, error) {
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return cl, nil
}

// Publish serializes e and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.OrderID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
		Timestamp: e.OccurredAt,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce order event: %w", err)
	}
	p.logger.DebugContext(ctx, "order event published",
		"event_type", e.Type,
		"order_id", e.OrderID,
		"topic", p.topic,
	)
	return nil
}
