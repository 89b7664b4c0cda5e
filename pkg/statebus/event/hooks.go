package event

import (
	"context"
	"fmt"
	"slices"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// HookKind identifies which teardown a lifecycle hook observes.
type HookKind int

const (
	// HookSubscriptionRemoved fires after one specific subscription is removed.
	HookSubscriptionRemoved HookKind = iota

	// HookEventDrained fires after the last subscription for a name is removed.
	HookEventDrained

	// HookRegistryCleared fires after the registry's last subscription is removed.
	HookRegistryCleared
)

// String returns the kind name.
func (k HookKind) String() string {
	switch k {
	case HookSubscriptionRemoved:
		return "subscription_removed"
	case HookEventDrained:
		return "event_drained"
	case HookRegistryCleared:
		return "registry_cleared"
	default:
		return "unknown"
	}
}

// Scope is what a hook is registered against. Key is the subscription id
// for HookSubscriptionRemoved, the event name for HookEventDrained, and empty
// for HookRegistryCleared.
type Scope struct {
	Kind HookKind
	Key  string
}

// SubscriptionRemoved returns the scope for removal of subscription id.
func SubscriptionRemoved(id string) Scope {
	return Scope{Kind: HookSubscriptionRemoved, Key: id}
}

// EventDrained returns the scope for name losing its last subscription.
func EventDrained(name string) Scope {
	return Scope{Kind: HookEventDrained, Key: name}
}

// RegistryCleared returns the scope for the registry becoming empty.
func RegistryCleared() Scope {
	return Scope{Kind: HookRegistryCleared}
}

// HookEvent is passed to a firing hook.
type HookEvent struct {
	Scope  Scope
	HookID string
}

// HookFunc handles a lifecycle hook. Errors and panics are logged and
// swallowed so one hook cannot stop the rest of the cascade.
type HookFunc func(ctx context.Context, evt HookEvent) error

type hook struct {
	id    string
	scope Scope
	fn    HookFunc
}

type hookCall struct {
	fn  HookFunc
	evt HookEvent
}

// hookTable indexes hooks by scope (registration order) and by id.
// Guarded by Registry.mu.
type hookTable struct {
	byScope map[Scope][]*hook
	byID    map[string]*hook
}

func newHookTable() hookTable {
	return hookTable{
		byScope: make(map[Scope][]*hook),
		byID:    make(map[string]*hook),
	}
}

func (t *hookTable) add(id string, scope Scope, fn HookFunc) {
	h := &hook{id: id, scope: scope, fn: fn}
	t.byScope[scope] = append(t.byScope[scope], h)
	t.byID[id] = h
}

func (t *hookTable) remove(id string) bool {
	h, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	hooks := slices.DeleteFunc(t.byScope[h.scope], func(other *hook) bool {
		return other.id == id
	})
	if len(hooks) == 0 {
		delete(t.byScope, h.scope)
	} else {
		t.byScope[h.scope] = hooks
	}
	return true
}

// collect returns the calls for every hook currently registered on scope.
// Hooks stay registered after firing.
func (t *hookTable) collect(scope Scope) []hookCall {
	hooks := t.byScope[scope]
	if len(hooks) == 0 {
		return nil
	}
	calls := make([]hookCall, len(hooks))
	for i, h := range hooks {
		calls[i] = hookCall{fn: h.fn, evt: HookEvent{Scope: scope, HookID: h.id}}
	}
	return calls
}

// RegisterHook registers fn on scope and returns the hook id.
// The hook fires every time the scope's teardown happens until RemoveHook.
func (r *Registry) RegisterHook(scope Scope, fn HookFunc) string {
	if fn == nil {
		panic(ErrNilHook)
	}
	id := r.opts.newID()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.add(id, scope, fn)
	return id
}

// OnSubscriptionRemoved registers fn to run after subscription id is removed.
func (r *Registry) OnSubscriptionRemoved(id string, fn HookFunc) string {
	return r.RegisterHook(SubscriptionRemoved(id), fn)
}

// OnEventDrained registers fn to run whenever name loses its last subscription.
func (r *Registry) OnEventDrained(name string, fn HookFunc) string {
	return r.RegisterHook(EventDrained(name), fn)
}

// OnCleared registers fn to run whenever the registry becomes empty.
func (r *Registry) OnCleared(fn HookFunc) string {
	return r.RegisterHook(RegistryCleared(), fn)
}

// RemoveHook removes a hook. Unknown ids are ignored.
func (r *Registry) RemoveHook(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.remove(id)
}

// HasHook returns true if id is a registered hook.
func (r *Registry) HasHook(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.hooks.byID[id]
	return ok
}

// fire runs hook calls in order with the registry unlocked.
func (r *Registry) fire(ctx context.Context, calls []hookCall) {
	for _, c := range calls {
		if err := runHook(ctx, c); err != nil {
			r.opts.metrics.RecordHookFailure(ctx, c.evt.Scope.Kind.String())
			observability.LogHookError(r.opts.logger, c.evt.Scope.Kind.String(), c.evt.Scope.Key, c.evt.HookID, err)
		}
	}
}

func runHook(ctx context.Context, c hookCall) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p}
		}
	}()
	if err := c.fn(ctx, c.evt); err != nil {
		return fmt.Errorf("hook %s: %w", c.evt.HookID, err)
	}
	return nil
}
