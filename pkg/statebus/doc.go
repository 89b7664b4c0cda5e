/*
Package statebus provides an in-process publish/subscribe hub with
replayable state and request/subscription deduplication.

# Overview

A Hub pairs two components:

  - event.Registry: named subscriptions, sync/async emission, state
    snapshots replayed to late subscribers, and lifecycle hooks.
  - dedup.Coordinator: single-flight Call and shared Subscribe, signaling
    through the registry.

Delivery is in-process only. Nothing is persisted.

# Basic Usage

	hub := statebus.New(statebus.WithLogger(logger))
	reg := hub.Registry()

	id := reg.Subscribe(ctx, "price", func(ctx context.Context, data any, id string) error {
	    fmt.Println("price:", data)
	    return nil
	})
	defer reg.Unsubscribe(ctx, id)

	reg.SetState(ctx, "price", 42) // late subscribers also see 42

# Deduplication

Concurrent calls sharing a key run the producer once:

	user, err := hub.Dedup().Call(ctx, "user:42", func(ctx context.Context) (any, error) {
	    return db.LoadUser(ctx, 42)
	})

Concurrent subscriptions sharing a key open one upstream:

	id, err := hub.Dedup().Subscribe(ctx, "ticker:BTC", openTicker, onTick)
	...
	hub.Dedup().Unsubscribe(ctx, id) // last one out closes the ticker

# Observability

Logging uses log/slog. Metrics and tracing use the global OpenTelemetry
providers and are off unless enabled:

	hub := statebus.New(
	    statebus.WithMetrics(true),
	    statebus.WithTracing(true),
	)

# Configuration

Settings can come from a YAML or JSON file, see package config:

	cfg, err := config.FromFile("statebus.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	hub := statebus.NewFromConfig(cfg)
*/
package statebus
