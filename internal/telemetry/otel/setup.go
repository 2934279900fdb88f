// Package otel wires the OpenTelemetry SDK: one OTLP/gRPC exporter per signal
// (traces, metrics, logs) behind a single Providers handle.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const metricExportInterval = 10 * time.Second

// Providers bundles the three signal providers plus a Shutdown that flushes
// them in reverse construction order.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders builds exporting providers against the OTLP endpoint, or inert
// in-process providers when endpoint is empty (local development without a
// collector). https endpoints dial with TLS unless insecureOverride is set,
// mirroring OTEL_EXPORTER_OTLP_INSECURE.
func NewProviders(ctx context.Context, endpoint, serviceName string, insecureOverride bool) (*Providers, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return noopProviders(), nil
	}

	target, insecure, err := dialTarget(endpoint)
	if err != nil {
		return nil, err
	}
	insecure = insecure || insecureOverride

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	var closers []func(context.Context) error
	fail := func(err error) (*Providers, error) {
		for _, c := range closers {
			_ = c(ctx)
		}
		return nil, err
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOptions(target, insecure)...)
	if err != nil {
		return fail(err)
	}
	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	closers = append(closers, p.TracerProvider.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, metricOptions(target, insecure)...)
	if err != nil {
		return fail(err)
	}
	p.MeterProvider = metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(metricExportInterval))),
	)
	closers = append(closers, p.MeterProvider.Shutdown)

	logExp, err := otlploggrpc.New(ctx, logOptions(target, insecure)...)
	if err != nil {
		return fail(err)
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	closers = append(closers, p.LoggerProvider.Shutdown)

	p.Shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}
	return p, nil
}

func noopProviders() *Providers {
	return &Providers{
		TracerProvider: sdktrace.NewTracerProvider(),
		MeterProvider:  metric.NewMeterProvider(),
		LoggerProvider: sdklog.NewLoggerProvider(),
		Shutdown:       func(context.Context) error { return nil },
	}
}

// dialTarget reduces an endpoint URL to the host:port the gRPC exporters
// dial. Paths are dropped; a bare host:port is accepted.
func dialTarget(endpoint string) (target string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("otel: bad OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("otel: OTLP endpoint %q has no host", endpoint)
	}
	return u.Host, u.Scheme != "https", nil
}

func traceOptions(target string, insecure bool) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func metricOptions(target string, insecure bool) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func logOptions(target string, insecure bool) []otlploggrpc.Option {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	return opts
}

// SetGlobal installs the tracer and meter providers process-wide so otelhttp
// and other instrumentation pick them up. The logger provider stays explicit
// and is handed to consumers directly.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
