package dedup

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// Producer computes the value for a single-flight call.
type Producer func(ctx context.Context) (any, error)

// Outcome tags how a producer settled.
type Outcome int

const (
	// OutcomeResolved means the producer returned without error.
	OutcomeResolved Outcome = iota

	// OutcomeRejected means the producer returned an error or panicked.
	OutcomeRejected
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result is what the activator broadcasts to every waiter of a key.
type Result struct {
	Data    any
	Err     error
	Outcome Outcome
}

// asResult interprets a value delivered on a call key. Anything other than a
// Result (a state snapshot replayed on the key, for instance) resolves with
// the value itself.
func asResult(data any) Result {
	if res, ok := data.(Result); ok {
		return res
	}
	return Result{Data: data, Outcome: OutcomeResolved}
}

// Call runs producer at most once across all concurrent calls sharing key and
// returns its result to each of them.
//
// The caller that finds key idle becomes the activator: producer starts on a
// new goroutine with a context detached from the activator's cancellation,
// since other callers depend on it. Every caller, the activator included,
// waits through a one-shot listener on key. When ctx ends first, that
// caller's listener is removed and ctx.Err() is returned; the producer keeps
// running for the others.
//
// When the producer settles, every waiter is detached from key in one step
// and handed the result, so the next Call for key starts a new producer.
// A state snapshot stored on key answers callers without running producer.
func (c *Coordinator) Call(ctx context.Context, key string, producer Producer) (any, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}

	ch := make(chan Result, 1)
	var delivered atomic.Bool
	m := c.reg.Join(ctx, key, func(ctx context.Context, data any, id string) error {
		if !delivered.CompareAndSwap(false, true) {
			return nil
		}
		// A no-op unless this is a snapshot replay.
		c.reg.Unsubscribe(ctx, id)
		ch <- asResult(data)
		return nil
	}, nil)

	c.metrics.RecordCall(ctx, key, !m.First)
	if m.First && !delivered.Load() {
		go c.produce(context.WithoutCancel(ctx), key, producer)
	}

	select {
	case res := <-ch:
		return res.Data, res.Err
	case <-ctx.Done():
		c.reg.Unsubscribe(context.WithoutCancel(ctx), m.ID)
		select {
		case res := <-ch:
			return res.Data, res.Err
		default:
		}
		return nil, ctx.Err()
	}
}

// produce runs producer and hands the tagged result to every waiter of key.
func (c *Coordinator) produce(ctx context.Context, key string, producer Producer) {
	spanCtx, span := c.spans.StartProducerSpan(ctx, key)
	start := time.Now()

	data, err := runProducer(spanCtx, key, producer)

	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())
	c.metrics.RecordProducer(ctx, key, duration, err)

	res := Result{Data: data, Err: err, Outcome: OutcomeResolved}
	waiters := c.reg.Detach(ctx, key)
	if err != nil {
		res.Outcome = OutcomeRejected
		observability.LogProducerError(c.logger, key, err, durationMs)
	} else {
		observability.LogProducerComplete(c.logger, key, durationMs, len(waiters))
	}
	c.spans.AddSpanEvent(spanCtx, "producer.settled",
		attribute.String("outcome", res.Outcome.String()),
		attribute.Int("waiters", len(waiters)),
	)
	c.spans.EndSpanWithError(span, err)

	// Waiter listeners never fail.
	for _, w := range waiters {
		_ = w.Callback(ctx, res, w.ID)
	}
}

func runProducer(ctx context.Context, key string, producer Producer) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, &PanicError{Key: key, Value: p}
		}
	}()
	return producer(ctx)
}
