// Package dedup collapses concurrent identical work onto one underlying
// operation, using an event.Registry as its signaling bus.
//
// Call gives single-flight request semantics: any number of concurrent calls
// sharing a key run the producer once and all receive its result. Subscribe
// gives shared subscriptions: while a key has consumers, exactly one upstream
// subscription is open and every consumer receives every value it produces.
//
// The coordinator keeps no table of its own. A key is active exactly when the
// registry has subscriptions under that name.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/statebus/pkg/statebus/event"
	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// Sentinel errors for coordinator misuse.
var (
	// ErrNilProducer indicates Call was given a nil producer.
	ErrNilProducer = errors.New("dedup: nil producer")

	// ErrNilOpener indicates Subscribe was given a nil opener.
	ErrNilOpener = errors.New("dedup: nil opener")
)

// PanicError records a panic recovered from a producer, opener, or closer.
type PanicError struct {
	Key   string
	Value any
}

// Error implements error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("dedup key %s: panic: %v", e.Key, e.Value)
}

// Coordinator deduplicates calls and subscriptions per key.
type Coordinator struct {
	reg     *event.Registry
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for producer and upstream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the span manager used around producers and openers.
// Default: observability.NoopSpanManager{}
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.spans = s
		}
	}
}

// New creates a coordinator on top of reg. Keys share reg's name space, so
// callers should not emit on dedup keys themselves.
func New(reg *event.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:     reg,
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the coordinator signals through.
func (c *Coordinator) Registry() *event.Registry {
	return c.reg
}

// Active returns true while key has waiting callers or consumers.
func (c *Coordinator) Active(key string) bool {
	return c.reg.HasEvent(key)
}

// Unsubscribe removes a consumer added by Subscribe. Removing the last
// consumer of a key closes its upstream.
func (c *Coordinator) Unsubscribe(ctx context.Context, id string) {
	c.reg.Unsubscribe(ctx, id)
}
