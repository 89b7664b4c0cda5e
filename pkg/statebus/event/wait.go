package event

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// Once subscribes cb for a single delivery. The subscription removes itself
// before cb runs, so concurrent emissions deliver to cb at most once.
func (r *Registry) Once(ctx context.Context, name string, cb Callback) string {
	if cb == nil {
		panic(ErrNilCallback)
	}
	var fired atomic.Bool
	return r.Subscribe(ctx, name, func(ctx context.Context, data any, id string) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		r.Unsubscribe(ctx, id)
		return cb(ctx, data, id)
	})
}

// WaitOnce blocks until name is delivered once and returns the value. A
// snapshot for name satisfies the wait immediately.
//
// If ctx ends first the listener is removed and ctx.Err() is returned.
func (r *Registry) WaitOnce(ctx context.Context, name string) (any, error) {
	ch := make(chan any, 1)
	id := r.Once(ctx, name, func(_ context.Context, data any, _ string) error {
		ch <- data
		return nil
	})

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		r.Unsubscribe(context.WithoutCancel(ctx), id)
		// A delivery may have raced the cancellation.
		select {
		case v := <-ch:
			return v, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// WaitOnceTimeout is WaitOnce bounded by timeout. When the timer wins, the
// result is (nil, nil) if onTimeout is nil and (nil, onTimeout()) otherwise.
// The losing listener is always removed.
//
// Cancellation of ctx itself is reported as ctx.Err(), not as a timeout.
func (r *Registry) WaitOnceTimeout(ctx context.Context, name string, timeout time.Duration, onTimeout func() error) (any, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := r.WaitOnce(waitCtx, name)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		if onTimeout == nil {
			return nil, nil
		}
		return nil, onTimeout()
	}
	return nil, err
}
