// Package event provides an in-process event registry with replayable state
// and lifecycle hooks.
//
// # Subscriptions
//
// A subscription binds a Callback to an event name. Subscribe returns an id
// that is later passed to Unsubscribe:
//
//	reg := event.NewRegistry()
//	id := reg.Subscribe(ctx, "user.updated", func(ctx context.Context, data any, id string) error {
//	    fmt.Println("got", data)
//	    return nil
//	})
//	defer reg.Unsubscribe(ctx, id)
//
// Subscribers of one name are always invoked in registration order. Each
// emission works on a copy of the subscriber list taken when it starts.
//
// # Emission
//
// Both emit functions call subscribers in registration order on the caller's
// goroutine. EmitSync stops at the first error. EmitAsync always calls every
// subscriber, recovers panics, and reports the first failure:
//
//	if err := reg.EmitAsync(ctx, "user.updated", user); err != nil {
//	    var de *event.DeliveryError
//	    if errors.As(err, &de) { ... }
//	}
//
// # State
//
// SetState stores a snapshot before emitting. Every later subscription for the
// same name receives the snapshot synchronously inside Subscribe:
//
//	reg.SetState(ctx, "config", cfg)
//	reg.Subscribe(ctx, "config", apply) // apply(cfg) runs before Subscribe returns
//
// # Lifecycle Hooks
//
// Hooks observe teardown: a specific subscription being removed, a name losing
// its last subscription, or the registry becoming empty. For one removal they
// fire in that order. Hooks remain registered until RemoveHook; their errors
// and panics are logged and never interrupt the cascade.
//
//	reg.OnEventDrained("prices", func(ctx context.Context, evt event.HookEvent) error {
//	    return feed.Close()
//	})
//
// Join combines Subscribe with an atomic "was this name idle" check and an
// optional drain hook registered in the same step. Detach removes a name's
// subscriptions in one step and returns them. The dedup package builds
// single-flight semantics on the two.
package event
