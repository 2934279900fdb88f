package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier implements Notifier using segmentio/kafka-go. Events are
// keyed by user so consumers see one user's events in order.
type KafkaNotifier struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaNotifier creates a Kafka notifier that writes events to the given
// topic. Returns nil when brokers or topic are unconfigured; PublishAsync
// treats a nil notifier as "publishing disabled". Call Close when shutting
// down.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaNotifier{writer: writer, topic: topic}
}

// Publish serializes the event as JSON and writes it to the Kafka topic.
func (n *KafkaNotifier) Publish(ctx context.Context, event *Event) error {
	if n == nil || n.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return n.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
