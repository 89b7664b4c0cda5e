package dedup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/statebus/pkg/statebus/dedup"
	"github.com/randalmurphal/statebus/pkg/statebus/event"
)

// gatedProducer blocks until release is closed, counting invocations.
type gatedProducer struct {
	calls   atomic.Int32
	release chan struct{}
	value   any
	err     error
}

func newGatedProducer(value any, err error) *gatedProducer {
	return &gatedProducer{release: make(chan struct{}), value: value, err: err}
}

func (p *gatedProducer) produce(ctx context.Context) (any, error) {
	p.calls.Add(1)
	<-p.release
	return p.value, p.err
}

type callResult struct {
	value any
	err   error
}

func callAsync(c *dedup.Coordinator, ctx context.Context, key string, producer dedup.Producer) <-chan callResult {
	out := make(chan callResult, 1)
	go func() {
		v, err := c.Call(ctx, key, producer)
		out <- callResult{value: v, err: err}
	}()
	return out
}

func waitForWaiters(t *testing.T, reg *event.Registry, key string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return reg.Count(key) == n
	}, time.Second, time.Millisecond)
}

func TestCall_SingleFlight(t *testing.T) {
	reg := event.NewRegistry()
	c := dedup.New(reg)
	ctx := context.Background()
	p := newGatedProducer("v", nil)

	const n = 10
	results := make([]<-chan callResult, n)
	for i := range results {
		results[i] = callAsync(c, ctx, "k", p.produce)
	}
	waitForWaiters(t, reg, "k", n)
	assert.True(t, c.Active("k"))
	close(p.release)

	for _, ch := range results {
		res := <-ch
		require.NoError(t, res.err)
		assert.Equal(t, "v", res.value)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCall_TwoConcurrentCallsShareProducer(t *testing.T) {
	c := dedup.New(event.NewRegistry())
	ctx := context.Background()

	var counter atomic.Int32
	producer := func(context.Context) (any, error) {
		counter.Add(1)
		time.Sleep(50 * time.Millisecond)
		return "v", nil
	}

	var wg sync.WaitGroup
	values := make([]any, 2)
	for i := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Call(ctx, "k", producer)
			assert.NoError(t, err)
			values[i] = v
		}()
	}
	wg.Wait()

	assert.Equal(t, []any{"v", "v"}, values)
	assert.Equal(t, int32(1), counter.Load())
}

func TestCall_ReactivatesAfterDrain(t *testing.T) {
	reg := event.NewRegistry()
	c := dedup.New(reg)
	ctx := context.Background()

	var counter atomic.Int32
	producer := func(context.Context) (any, error) {
		return counter.Add(1), nil
	}

	v, err := c.Call(ctx, "k", producer)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
	require.Eventually(t, func() bool { return !c.Active("k") }, time.Second, time.Millisecond)

	v, err = c.Call(ctx, "k", producer)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	assert.Equal(t, int32(2), counter.Load())
}

func TestCall_ProducerErrorReachesEveryWaiter(t *testing.T) {
	reg := event.NewRegistry()
	c := dedup.New(reg)
	ctx := context.Background()
	boom := errors.New("boom")
	p := newGatedProducer(nil, boom)

	a := callAsync(c, ctx, "k", p.produce)
	b := callAsync(c, ctx, "k", p.produce)
	waitForWaiters(t, reg, "k", 2)
	close(p.release)

	for _, ch := range []<-chan callResult{a, b} {
		res := <-ch
		assert.ErrorIs(t, res.err, boom)
		assert.Nil(t, res.value)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCall_ProducerPanicBecomesError(t *testing.T) {
	c := dedup.New(event.NewRegistry())

	_, err := c.Call(context.Background(), "k", func(context.Context) (any, error) {
		panic("producer exploded")
	})

	var pe *dedup.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "k", pe.Key)
	assert.Equal(t, "producer exploded", pe.Value)
}

func TestCall_CancelledCallerLeavesOthersWaiting(t *testing.T) {
	reg := event.NewRegistry()
	c := dedup.New(reg)
	p := newGatedProducer("v", nil)

	cancelCtx, cancel := context.WithCancel(context.Background())
	a := callAsync(c, cancelCtx, "k", p.produce)
	b := callAsync(c, context.Background(), "k", p.produce)
	waitForWaiters(t, reg, "k", 2)

	cancel()
	res := <-a
	assert.ErrorIs(t, res.err, context.Canceled)
	waitForWaiters(t, reg, "k", 1)

	close(p.release)
	res = <-b
	require.NoError(t, res.err)
	assert.Equal(t, "v", res.value)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCall_ProducerContextIsDetached(t *testing.T) {
	c := dedup.New(event.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	producerErr := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		_, _ = c.Call(ctx, "k", func(pctx context.Context) (any, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			producerErr <- pctx.Err()
			return nil, nil
		})
	}()

	<-started
	cancel()
	assert.NoError(t, <-producerErr)
}

func TestCall_NilProducer(t *testing.T) {
	c := dedup.New(event.NewRegistry())
	_, err := c.Call(context.Background(), "k", nil)
	assert.ErrorIs(t, err, dedup.ErrNilProducer)
}

func TestCall_StateOnKeyResolvesWithoutProducer(t *testing.T) {
	reg := event.NewRegistry()
	c := dedup.New(reg)
	ctx := context.Background()
	require.NoError(t, reg.SetState(ctx, "k", "cached"))

	var calls atomic.Int32
	v, err := c.Call(ctx, "k", func(context.Context) (any, error) {
		calls.Add(1)
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
	assert.False(t, c.Active("k"))
	assert.Never(t, func() bool {
		return calls.Load() > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
}

// Callers keep arriving while results are being handed out. Each one must be
// answered by the producer it joined or by a new one.
func TestCall_StaggeredCallersAlwaysSettle(t *testing.T) {
	c := dedup.New(event.NewRegistry())

	const (
		rounds  = 50
		callers = 32
	)
	var producers, failed atomic.Int32
	producer := func(context.Context) (any, error) {
		producers.Add(1)
		time.Sleep(500 * time.Microsecond)
		return "v", nil
	}

	for round := range rounds {
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				time.Sleep(time.Duration(i%8) * 250 * time.Microsecond)

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				v, err := c.Call(ctx, "k", producer)
				if err != nil || v != "v" {
					failed.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Zero(t, failed.Load(), "round %d: callers left without a result", round)
	}

	assert.False(t, c.Active("k"))
	assert.LessOrEqual(t, producers.Load(), int32(rounds*callers))
	assert.GreaterOrEqual(t, producers.Load(), int32(rounds))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "resolved", dedup.OutcomeResolved.String())
	assert.Equal(t, "rejected", dedup.OutcomeRejected.String())
	assert.Equal(t, "unknown", dedup.Outcome(9).String())
}
