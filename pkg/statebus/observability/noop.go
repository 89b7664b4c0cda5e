package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordSubscription(_ context.Context, _ string, _ int64) {}
func (NoopMetrics) RecordEmit(_ context.Context, _, _ string, _ int, _ error) {}
func (NoopMetrics) RecordHookFailure(_ context.Context, _ string) {}
func (NoopMetrics) RecordCall(_ context.Context, _ string, _ bool) {}
func (NoopMetrics) RecordProducer(_ context.Context, _ string, _ time.Duration, _ error) {}
func (NoopMetrics) RecordUpstream(_ context.Context, _ string, _ int64) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartProducerSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartProducerSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartOpenerSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartOpenerSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
