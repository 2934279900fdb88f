// Package notify publishes security events (logins, revocations, evictions)
// to downstream consumers. Publishing is always best-effort and asynchronous:
// a slow or absent broker must never delay an auth request.
package notify

import (
	"context"
	"errors"
	"log"
	"time"
)

// Event types published by the auth and admin flows.
const (
	EventLogin           = "login"
	EventLoginFailure    = "login_failure"
	EventLogout          = "logout"
	EventLogoutAll       = "logout_all"
	EventSessionRevoked  = "session_revoked"
	EventSessionEvicted  = "session_evicted"
	EventPasswordChanged = "password_changed"
	EventRoleChanged     = "role_changed"
	EventForceLogout     = "force_logout"
)

// Event is one security-relevant occurrence.
type Event struct {
	Type        string            `json:"type"`
	UserID      string            `json:"user_id"`
	SessionID   string            `json:"session_id,omitempty"`
	IP          string            `json:"ip,omitempty"`
	DeviceClass string            `json:"device_class,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// publishTimeout is the max time allowed for a single async publish. Used by
// PublishAsync and by ShutdownDrainDuration.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before
// closing the notifier, so in-flight async publishes have time to complete.
// Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// Notifier publishes security events. Callers use it best-effort: log and
// ignore errors.
type Notifier interface {
	// Publish sends a single event. Implementations may block briefly; call
	// from a goroutine if needed.
	Publish(ctx context.Context, event *Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}

// Fanout returns a Notifier that delivers every event to each of the given
// notifiers. Nil members are dropped; with none left it returns nil, which
// PublishAsync treats as publishing disabled. A failing sink does not stop
// delivery to the others; the errors are joined.
func Fanout(notifiers ...Notifier) Notifier {
	live := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			live = append(live, n)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return fanout(live)
}

type fanout []Notifier

func (f fanout) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) Close() error {
	var errs []error
	for _, n := range f {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAsync runs Publish in a goroutine with a short timeout so the caller
// is not blocked.
//
// notifier and event may be nil; PublishAsync returns immediately without
// starting a goroutine. The goroutine uses context.Background() with
// publishTimeout so request cancellation does not abort an in-flight publish.
func PublishAsync(notifier Notifier, event *Event) {
	if notifier == nil || event == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := notifier.Publish(ctx, event); err != nil {
			log.Printf("notify: async publish failed: %v", err)
		}
	}()
}
