package dedup

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/statebus/pkg/statebus/event"
	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// Emit re-broadcasts one upstream value to every consumer of a key.
type Emit func(data any)

// Closer tears down an upstream subscription.
type Closer func()

// Opener establishes an upstream subscription that pushes values through
// emit, and returns the function that closes it. Opener may block; it runs on
// its own goroutine.
type Opener func(ctx context.Context, emit Emit) (Closer, error)

// upstream is one activation of a shared subscription key.
type upstream struct {
	key       string
	gen       uint64        // registry generation of key this upstream serves
	ready     chan struct{} // closed once the opener has returned
	closer    Closer        // written before ready is closed
	closed    atomic.Bool
	closeOnce sync.Once
}

// Subscribe adds onData as a consumer of key. The first consumer of an idle
// key starts opener; later consumers share the upstream it opens. Every value
// the upstream emits reaches every consumer registered at that moment.
//
// When the last consumer unsubscribes, the upstream's closer runs exactly
// once, after the opener has returned if it was still running. Values
// emitted after that are dropped, and never reach consumers of a later
// activation of the same key.
func (c *Coordinator) Subscribe(ctx context.Context, key string, opener Opener, onData event.Callback) (string, error) {
	if opener == nil {
		return "", ErrNilOpener
	}
	if onData == nil {
		return "", event.ErrNilCallback
	}

	up := &upstream{key: key, ready: make(chan struct{})}
	m := c.reg.Join(ctx, key, onData, c.teardown(up))
	if m.First {
		up.gen = m.Generation
		go c.open(context.WithoutCancel(ctx), up, opener)
	}
	return m.ID, nil
}

// open runs opener for up and records its closer.
func (c *Coordinator) open(ctx context.Context, up *upstream, opener Opener) {
	defer close(up.ready)
	if up.closed.Load() {
		// Drained before the opener got a chance to run.
		return
	}

	spanCtx, span := c.spans.StartOpenerSpan(ctx, up.key)
	elapsed := observability.TimedOperation()

	closer, err := runOpener(spanCtx, up.key, opener, c.emitter(ctx, up))

	c.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogUpstreamError(c.logger, up.key, err)
		return
	}
	up.closer = closer
	c.metrics.RecordUpstream(ctx, up.key, 1)
	observability.LogUpstreamOpened(c.logger, up.key, elapsed())
}

func (c *Coordinator) emitter(ctx context.Context, up *upstream) Emit {
	return func(data any) {
		if up.closed.Load() {
			return
		}
		if err := c.reg.EmitSyncGeneration(ctx, up.key, up.gen, data); err != nil {
			observability.LogDeliveryError(c.logger, up.key, err)
		}
	}
}

// teardown returns the drain hook for up. It removes itself and closes the
// upstream once the opener has returned.
func (c *Coordinator) teardown(up *upstream) event.HookFunc {
	return func(ctx context.Context, evt event.HookEvent) error {
		c.reg.RemoveHook(evt.HookID)
		up.closed.Store(true)

		ctx = context.WithoutCancel(ctx)
		select {
		case <-up.ready:
			c.close(ctx, up)
		default:
			go func() {
				<-up.ready
				c.close(ctx, up)
			}()
		}
		return nil
	}
}

func (c *Coordinator) close(ctx context.Context, up *upstream) {
	up.closeOnce.Do(func() {
		if up.closer == nil {
			return
		}
		defer func() {
			if p := recover(); p != nil {
				observability.LogUpstreamError(c.logger, up.key, &PanicError{Key: up.key, Value: p})
			}
		}()
		c.metrics.RecordUpstream(ctx, up.key, -1)
		up.closer()
		observability.LogUpstreamClosed(c.logger, up.key)
	})
}

func runOpener(ctx context.Context, key string, opener Opener, emit Emit) (closer Closer, err error) {
	defer func() {
		if p := recover(); p != nil {
			closer, err = nil, &PanicError{Key: key, Value: p}
		}
	}()
	return opener(ctx, emit)
}
