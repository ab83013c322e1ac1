package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Payment event types.
const (
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
)

// PaymentEvent is published when a push payment reaches a final status.
type PaymentEvent struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	AccountID         string    `json:"accountId,omitempty"`
	Amount            int64     `json:"amount"`
	ReceiptNumber     string    `json:"receiptNumber,omitempty"`
	ResultDesc        string    `json:"resultDesc,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// KafkaPublisher writes payment events to a Kafka topic, keyed by checkout
// request ID so events for one payment stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
			// Events are written one at a time; the 1s default would delay each.
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Publish writes a single event.
func (p *KafkaPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CheckoutRequestID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
