package event

import (
	"context"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// EmitSync invokes every current subscriber of name in registration order on
// the calling goroutine.
//
// The first callback error stops delivery and is returned as a
// *DeliveryError; later subscribers are not called. Panics are not
// recovered. Subscribers added during emission are not visited.
func (r *Registry) EmitSync(ctx context.Context, name string, data any) error {
	return r.emitSync(ctx, name, data, r.listeners(name))
}

// EmitSyncGeneration is EmitSync limited to generation gen of name, as
// reported by Join. Once that generation has drained nothing is delivered,
// even if name has since been activated again.
func (r *Registry) EmitSyncGeneration(ctx context.Context, name string, gen uint64, data any) error {
	return r.emitSync(ctx, name, data, r.generationListeners(name, gen))
}

func (r *Registry) emitSync(ctx context.Context, name string, data any, subs []*subscription) error {
	var err error
	for _, sub := range subs {
		if cbErr := sub.cb(ctx, data, sub.id); cbErr != nil {
			err = &DeliveryError{Name: name, SubscriptionID: sub.id, Err: cbErr}
			break
		}
	}

	r.opts.metrics.RecordEmit(ctx, name, observability.ModeSync, len(subs), err)
	return err
}

// EmitAsync invokes every current subscriber of name in registration order
// and settles once all of them have returned. A failure never stops the
// remaining callbacks; the first failure in registration order is returned
// after the last callback finishes. Panics are recovered and reported as
// *PanicError.
//
// Callbacks that start background work should return once it is scheduled;
// EmitAsync does not track it.
func (r *Registry) EmitAsync(ctx context.Context, name string, data any) error {
	subs := r.listeners(name)

	var first error
	for _, sub := range subs {
		if err := deliverRecovered(ctx, name, sub, data); err != nil && first == nil {
			first = err
		}
	}

	r.opts.metrics.RecordEmit(ctx, name, observability.ModeAsync, len(subs), first)
	return first
}

func deliverRecovered(ctx context.Context, name string, sub *subscription, data any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &DeliveryError{Name: name, SubscriptionID: sub.id, Err: &PanicError{Value: p}}
		}
	}()
	if cbErr := sub.cb(ctx, data, sub.id); cbErr != nil {
		return &DeliveryError{Name: name, SubscriptionID: sub.id, Err: cbErr}
	}
	return nil
}
