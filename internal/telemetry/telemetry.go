// Package telemetry turns security events into OpenTelemetry signals. The
// Recorder implements notify.Notifier so it can sit in the notifier fan-out
// next to the Kafka publisher: every event becomes one OTel log record and an
// increment of the event counter. The authorizer and the reconciler report
// their outcomes through the same meter.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"property-platform/access-core/internal/authz"
	"property-platform/access-core/internal/notify"
)

// scopeName identifies this instrumentation scope in exported signals.
const scopeName = "property-platform/access-core"

// logEmitter is the slice of otellog.Logger the Recorder uses. Narrowed so
// tests can capture records without an SDK pipeline.
type logEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// Recorder publishes security events and operational counts to OpenTelemetry.
// All methods are best-effort and never return an error to the hot path.
type Recorder struct {
	logger    logEmitter
	events    metric.Int64Counter
	decisions metric.Int64Counter
	purged    metric.Int64Counter
}

// NewRecorder builds a Recorder on the given providers. Either provider may
// be nil; the corresponding signal is then skipped.
func NewRecorder(lp *sdklog.LoggerProvider, mp *sdkmetric.MeterProvider) (*Recorder, error) {
	r := &Recorder{}
	if lp != nil {
		r.logger = lp.Logger(scopeName)
	}
	if mp == nil {
		return r, nil
	}
	meter := mp.Meter(scopeName)
	var err error
	r.events, err = meter.Int64Counter("auth.events",
		metric.WithDescription("Security events by type."),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, fmt.Errorf("creating auth.events counter: %w", err)
	}
	r.decisions, err = meter.Int64Counter("authz.decisions",
		metric.WithDescription("Authorization decisions by outcome."),
		metric.WithUnit("{decision}"))
	if err != nil {
		return nil, fmt.Errorf("creating authz.decisions counter: %w", err)
	}
	r.purged, err = meter.Int64Counter("reconciler.purged",
		metric.WithDescription("Rows removed by cleanup sweeps."),
		metric.WithUnit("{row}"))
	if err != nil {
		return nil, fmt.Errorf("creating reconciler.purged counter: %w", err)
	}
	return r, nil
}

// Publish implements notify.Notifier. The event becomes one log record with
// its fields as attributes, plus one count on the event counter.
func (r *Recorder) Publish(ctx context.Context, event *notify.Event) error {
	if event == nil {
		return nil
	}
	if r.events != nil {
		r.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", event.Type)))
	}
	if r.logger == nil {
		return nil
	}

	rec := otellog.Record{}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetBody(otellog.StringValue(event.Type))
	rec.AddAttributes(otellog.String("event_type", event.Type))
	if event.UserID != "" {
		rec.AddAttributes(otellog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		rec.AddAttributes(otellog.String("ip", event.IP))
	}
	if event.DeviceClass != "" {
		rec.AddAttributes(otellog.String("device_class", event.DeviceClass))
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String(k, v))
	}
	r.logger.Emit(ctx, rec)
	return nil
}

// Close implements notify.Notifier. The providers own exporter shutdown.
func (r *Recorder) Close() error { return nil }

// RecordDecision counts one authorization outcome. Denials carry the reason
// so MissingPermission and NotOwner can be graphed separately.
func (r *Recorder) RecordDecision(d authz.Decision) {
	if r.decisions == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("allowed", d.Allowed)}
	if !d.Allowed {
		attrs = append(attrs, attribute.String("reason", string(d.Reason)))
	}
	r.decisions.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordSweep counts the rows one reconciler pass removed, by category.
// Empty sweeps record nothing so the series stays sparse.
func (r *Recorder) RecordSweep(sessionsPurged, blacklistPurged int64) {
	if r.purged == nil {
		return
	}
	ctx := context.Background()
	if sessionsPurged > 0 {
		r.purged.Add(ctx, sessionsPurged, metric.WithAttributes(attribute.String("category", "sessions")))
	}
	if blacklistPurged > 0 {
		r.purged.Add(ctx, blacklistPurged, metric.WithAttributes(attribute.String("category", "blacklist")))
	}
}
