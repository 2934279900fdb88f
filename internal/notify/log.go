package notify

import (
	"context"
	"encoding/json"
	"log"
)

// LogNotifier writes events to the process log. It stands in for a broker in
// development and in tests.
type LogNotifier struct{}

// NewLogNotifier returns a notifier that logs every event.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Publish logs the event as JSON.
func (n *LogNotifier) Publish(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	log.Printf("notify: %s", payload)
	return nil
}

// Close is a no-op.
func (n *LogNotifier) Close() error {
	return nil
}
