package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Emission modes reported as the "mode" attribute.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// MetricsRecorder records statebus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSubscription records a subscription being added (delta 1) or removed (delta -1).
	RecordSubscription(ctx context.Context, name string, delta int64)

	// RecordEmit records one emission with the number of callbacks it reached.
	RecordEmit(ctx context.Context, name, mode string, listeners int, err error)

	// RecordHookFailure records a lifecycle hook that returned an error or panicked.
	RecordHookFailure(ctx context.Context, kind string)

	// RecordCall records a single-flight call. Shared is true when the caller
	// joined an in-flight producer instead of starting one.
	RecordCall(ctx context.Context, key string, shared bool)

	// RecordProducer records a settled producer invocation.
	RecordProducer(ctx context.Context, key string, duration time.Duration, err error)

	// RecordUpstream records an upstream subscription being opened (delta 1) or closed (delta -1).
	RecordUpstream(ctx context.Context, key string, delta int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	subscriptions   metric.Int64UpDownCounter
	emits           metric.Int64Counter
	emitErrors      metric.Int64Counter
	emitListeners   metric.Int64Histogram
	hookFailures    metric.Int64Counter
	calls           metric.Int64Counter
	producerLatency metric.Float64Histogram
	producerErrors  metric.Int64Counter
	upstreams       metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("statebus")

	subscriptions, err := meter.Int64UpDownCounter("statebus.subscriptions.active",
		metric.WithDescription("Number of live subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	emits, err := meter.Int64Counter("statebus.emits",
		metric.WithDescription("Number of emissions"),
	)
	if err != nil {
		return nil, err
	}

	emitErrors, err := meter.Int64Counter("statebus.emit.errors",
		metric.WithDescription("Number of emissions that surfaced a subscriber error"),
	)
	if err != nil {
		return nil, err
	}

	emitListeners, err := meter.Int64Histogram("statebus.emit.listeners",
		metric.WithDescription("Subscribers reached per emission"),
	)
	if err != nil {
		return nil, err
	}

	hookFailures, err := meter.Int64Counter("statebus.hook.failures",
		metric.WithDescription("Number of lifecycle hooks that failed"),
	)
	if err != nil {
		return nil, err
	}

	calls, err := meter.Int64Counter("statebus.dedup.calls",
		metric.WithDescription("Number of single-flight calls"),
	)
	if err != nil {
		return nil, err
	}

	producerLatency, err := meter.Float64Histogram("statebus.dedup.producer.latency_ms",
		metric.WithDescription("Producer latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	producerErrors, err := meter.Int64Counter("statebus.dedup.producer.errors",
		metric.WithDescription("Number of failed producers"),
	)
	if err != nil {
		return nil, err
	}

	upstreams, err := meter.Int64UpDownCounter("statebus.dedup.upstreams.active",
		metric.WithDescription("Number of open shared upstream subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		subscriptions:   subscriptions,
		emits:           emits,
		emitErrors:      emitErrors,
		emitListeners:   emitListeners,
		hookFailures:    hookFailures,
		calls:           calls,
		producerLatency: producerLatency,
		producerErrors:  producerErrors,
		upstreams:       upstreams,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordSubscription(ctx context.Context, name string, delta int64) {
	m.subscriptions.Add(ctx, delta, metric.WithAttributes(attribute.String("event", name)))
}

func (m *otelMetrics) RecordEmit(ctx context.Context, name, mode string, listeners int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event", name),
		attribute.String("mode", mode),
	)
	m.emits.Add(ctx, 1, attrs)
	m.emitListeners.Record(ctx, int64(listeners), attrs)
	if err != nil {
		m.emitErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordHookFailure(ctx context.Context, kind string) {
	m.hookFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("hook_kind", kind)))
}

func (m *otelMetrics) RecordCall(ctx context.Context, key string, shared bool) {
	m.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.Bool("shared", shared),
	))
}

func (m *otelMetrics) RecordProducer(ctx context.Context, key string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("key", key))
	m.producerLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.producerErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordUpstream(ctx context.Context, key string, delta int64) {
	m.upstreams.Add(ctx, delta, metric.WithAttributes(attribute.String("key", key)))
}
