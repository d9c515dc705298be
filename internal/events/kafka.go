package events

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

type kafkaPublisher struct {
	w *kafka.Writer
}

// NewKafka returns a publisher writing JSON events keyed by message id, so every event
// of one message lands on the same partition in order.
func NewKafka(brokers []string, topic string) Publisher {
	if topic == "" {
		topic = "message-lifecycle"
	}
	// Writers are safe for concurrent use
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireOne,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &kafkaPublisher{w: w}
}

func (p *kafkaPublisher) Publish(ctx context.Context, evt Event) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.w.WriteMessages(ctx, kafka.Message{Key: []byte(evt.MessageID), Value: encode(evt)})
}

func (p *kafkaPublisher) Close() error {
	return p.w.Close()
}
