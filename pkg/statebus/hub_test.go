package statebus_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/statebus/pkg/statebus"
	"github.com/randalmurphal/statebus/pkg/statebus/config"
	"github.com/randalmurphal/statebus/pkg/statebus/dedup"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_SharesRegistryWithDedup(t *testing.T) {
	hub := statebus.New()
	ctx := context.Background()

	v, err := hub.Dedup().Call(ctx, "user:1", func(context.Context) (any, error) {
		return "alice", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
	assert.Same(t, hub.Registry(), hub.Dedup().Registry())
}

func TestHub_WaitWithoutTimeout(t *testing.T) {
	hub := statebus.New()
	ctx := context.Background()

	go func() {
		for !hub.Registry().HasEvent("ready") {
			time.Sleep(time.Millisecond)
		}
		_ = hub.Registry().EmitSync(ctx, "ready", 42)
	}()

	v, err := hub.Wait(ctx, "ready")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestHub_WaitTimeout(t *testing.T) {
	hub := statebus.New(statebus.WithWaitTimeout(10 * time.Millisecond))

	v, err := hub.Wait(context.Background(), "never")
	require.ErrorIs(t, err, statebus.ErrWaitTimeout)
	assert.Nil(t, v)
	assert.Contains(t, err.Error(), "never")
	assert.False(t, hub.Registry().HasEvent("never"))
}

func TestHub_WaitSatisfiedByState(t *testing.T) {
	hub := statebus.New(statebus.WithWaitTimeout(time.Second))
	ctx := context.Background()
	require.NoError(t, hub.Registry().SetState(ctx, "config", "loaded"))

	v, err := hub.Wait(ctx, "config")
	require.NoError(t, err)
	assert.Equal(t, "loaded", v)
}

func TestHub_CloseTearsDownUpstreams(t *testing.T) {
	hub := statebus.New(statebus.WithLogger(discardLogger()))
	ctx := context.Background()

	var opened, closed atomic.Bool
	opener := func(context.Context, dedup.Emit) (dedup.Closer, error) {
		opened.Store(true)
		return func() { closed.Store(true) }, nil
	}
	noop := func(context.Context, any, string) error { return nil }

	_, err := hub.Dedup().Subscribe(ctx, "feed", opener, noop)
	require.NoError(t, err)
	require.Eventually(t, opened.Load, time.Second, time.Millisecond)

	hub.Close(ctx)
	require.Eventually(t, closed.Load, time.Second, time.Millisecond)
	assert.Zero(t, hub.Registry().Len())
}

func TestHub_IDGenerator(t *testing.T) {
	var n atomic.Int32
	hub := statebus.New(statebus.WithIDGenerator(func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}))

	id := hub.Registry().Subscribe(context.Background(), "x", func(context.Context, any, string) error { return nil })
	assert.Equal(t, "id-1", id)
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.FromFile(filepath.Join("config", "testdata", "statebus.yaml"))
	require.NoError(t, err)

	hub := statebus.NewFromConfig(cfg, statebus.WithLogger(discardLogger()))
	ctx := context.Background()

	id := hub.Registry().Subscribe(ctx, "x", func(context.Context, any, string) error { return nil })
	assert.True(t, strings.HasPrefix(id, "orders-"), "id %q", id)
}

func TestNewFromConfig_OptionsOverrideSettings(t *testing.T) {
	cfg := config.New(map[string]any{"wait_timeout": "1h"})
	hub := statebus.NewFromConfig(cfg,
		statebus.WithLogger(discardLogger()),
		statebus.WithWaitTimeout(5*time.Millisecond),
	)

	_, err := hub.Wait(context.Background(), "never")
	assert.ErrorIs(t, err, statebus.ErrWaitTimeout)
}
