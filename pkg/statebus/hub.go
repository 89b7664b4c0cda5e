package statebus

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/randalmurphal/statebus/pkg/statebus/config"
	"github.com/randalmurphal/statebus/pkg/statebus/dedup"
	"github.com/randalmurphal/statebus/pkg/statebus/event"
	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// Hub wires an event registry and a dedup coordinator sharing it.
type Hub struct {
	registry *event.Registry
	dedup    *dedup.Coordinator
	cfg      hubConfig
}

// New creates a Hub.
func New(opts ...Option) *Hub {
	cfg := defaultHubConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newHub(cfg)
}

// NewFromConfig creates a Hub from loaded settings. opts are applied after the
// settings, so they take precedence.
//
// Unless WithLogger is given, the hub logs to stderr at the configured level.
func NewFromConfig(c config.Config, opts ...Option) *Hub {
	s := c.Settings()

	cfg := defaultHubConfig()
	cfg.metrics = s.Metrics
	cfg.tracing = s.Tracing
	cfg.waitTimeout = s.WaitTimeout
	cfg.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.LogLevel}))
	if s.IDPrefix != "" {
		prefix := s.IDPrefix
		cfg.newID = func() string { return prefix + uuid.NewString() }
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newHub(cfg)
}

func newHub(cfg hubConfig) *Hub {
	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if cfg.metrics {
		metrics = observability.NewMetricsRecorder()
	}
	var spans observability.SpanManager = observability.NoopSpanManager{}
	if cfg.tracing {
		spans = observability.NewSpanManager()
	}

	reg := event.NewRegistry(
		event.WithIDGenerator(cfg.newID),
		event.WithLogger(cfg.logger),
		event.WithMetrics(metrics),
	)
	coord := dedup.New(reg,
		dedup.WithLogger(cfg.logger),
		dedup.WithMetrics(metrics),
		dedup.WithSpanManager(spans),
	)
	return &Hub{registry: reg, dedup: coord, cfg: cfg}
}

// Registry returns the hub's event registry.
func (h *Hub) Registry() *event.Registry {
	return h.registry
}

// Dedup returns the hub's dedup coordinator.
func (h *Hub) Dedup() *dedup.Coordinator {
	return h.dedup
}

// Wait blocks until name is delivered once, bounded by the hub's wait
// timeout when one is configured. On timeout it returns an error wrapping
// ErrWaitTimeout.
func (h *Hub) Wait(ctx context.Context, name string) (any, error) {
	if h.cfg.waitTimeout <= 0 {
		return h.registry.WaitOnce(ctx, name)
	}
	return h.registry.WaitOnceTimeout(ctx, name, h.cfg.waitTimeout, func() error {
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, name, h.cfg.waitTimeout)
	})
}

// Close removes every subscription, firing the teardown cascade. Shared
// upstreams opened through Dedup are closed as a result.
func (h *Hub) Close(ctx context.Context) {
	h.registry.Clear(ctx)
}
