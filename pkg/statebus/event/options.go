package event

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// options holds registry configuration. Derived registries inherit it.
type options struct {
	newID   func() string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

func defaultOptions() options {
	return options{
		newID:   uuid.NewString,
		metrics: observability.NoopMetrics{},
	}
}

// Option configures a Registry.
type Option func(*options)

// WithIDGenerator sets the function producing subscription and hook ids.
// Default: uuid.NewString
//
// The generator must never return the same id twice for the life of the process.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLogger sets the logger for subscription and hook diagnostics.
// Default: nil (no logging)
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}
