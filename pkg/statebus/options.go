package statebus

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// hubConfig holds Hub construction settings.
type hubConfig struct {
	logger      *slog.Logger
	metrics     bool
	tracing     bool
	newID       func() string
	waitTimeout time.Duration
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		newID: uuid.NewString,
	}
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithLogger sets the structured logger for registry and dedup diagnostics.
// Default: nil (no logging)
func WithLogger(logger *slog.Logger) Option {
	return func(c *hubConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics.
// Default: false
//
// Metrics use the global meter provider:
//
//	otel.SetMeterProvider(provider)
//	hub := statebus.New(statebus.WithMetrics(true))
func WithMetrics(enabled bool) Option {
	return func(c *hubConfig) {
		c.metrics = enabled
	}
}

// WithTracing enables OpenTelemetry spans around producers and openers.
// Default: false
func WithTracing(enabled bool) Option {
	return func(c *hubConfig) {
		c.tracing = enabled
	}
}

// WithIDGenerator sets the subscription and hook id generator.
// Default: uuid.NewString
func WithIDGenerator(fn func() string) Option {
	return func(c *hubConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithWaitTimeout bounds Hub.Wait. Zero waits until the context ends.
// Default: 0
func WithWaitTimeout(d time.Duration) Option {
	return func(c *hubConfig) {
		if d >= 0 {
			c.waitTimeout = d
		}
	}
}
