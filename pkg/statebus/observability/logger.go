// Package observability provides logging, metrics, and tracing for statebus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// LogSubscribe logs a new subscription.
func LogSubscribe(logger *slog.Logger, name, subscriptionID string, replayed bool) {
	if logger == nil {
		return
	}
	logger.Debug("subscription added",
		slog.String("event", name),
		slog.String("subscription_id", subscriptionID),
		slog.Bool("replayed_state", replayed),
	)
}

// LogUnsubscribe logs a removed subscription.
func LogUnsubscribe(logger *slog.Logger, name, subscriptionID string) {
	if logger == nil {
		return
	}
	logger.Debug("subscription removed",
		slog.String("event", name),
		slog.String("subscription_id", subscriptionID),
	)
}

// LogReplayError logs a state replay callback failure (non-fatal).
func LogReplayError(logger *slog.Logger, name, subscriptionID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("state replay failed",
		slog.String("event", name),
		slog.String("subscription_id", subscriptionID),
		slog.String("error", err.Error()),
	)
}

// LogHookError logs a lifecycle hook failure. Hook failures never
// interrupt the teardown cascade.
func LogHookError(logger *slog.Logger, kind, key, hookID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("lifecycle hook failed",
		slog.String("hook_kind", kind),
		slog.String("key", key),
		slog.String("hook_id", hookID),
		slog.String("error", err.Error()),
	)
}

// LogProducerError logs a failed single-flight producer.
func LogProducerError(logger *slog.Logger, key string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("producer failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogProducerComplete logs a settled single-flight producer.
func LogProducerComplete(logger *slog.Logger, key string, durationMs float64, waiters int) {
	if logger == nil {
		return
	}
	logger.Debug("producer completed",
		slog.String("key", key),
		slog.Float64("duration_ms", durationMs),
		slog.Int("waiters", waiters),
	)
}

// LogUpstreamOpened logs an upstream subscription that was established.
func LogUpstreamOpened(logger *slog.Logger, key string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("upstream opened",
		slog.String("key", key),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogUpstreamError logs an opener failure.
func LogUpstreamError(logger *slog.Logger, key string, err error) {
	if logger == nil {
		return
	}
	logger.Error("upstream open failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// LogUpstreamClosed logs an upstream subscription teardown.
func LogUpstreamClosed(logger *slog.Logger, key string) {
	if logger == nil {
		return
	}
	logger.Debug("upstream closed",
		slog.String("key", key),
	)
}

// LogDeliveryError logs a consumer failure while fanning out an upstream value.
func LogDeliveryError(logger *slog.Logger, key string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("upstream delivery failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
