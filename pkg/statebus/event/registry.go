package event

import (
	"cmp"
	"context"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// Callback receives data emitted for an event name together with the id of
// the subscription it was registered under.
type Callback func(ctx context.Context, data any, id string) error

// Record describes one subscription. Derive and Subscriptions exchange
// subscriptions as records.
type Record struct {
	Name     string
	ID       string
	Callback Callback
}

// Membership is the result of Join.
type Membership struct {
	// ID is the new subscription id.
	ID string

	// First is true when the name had no subscriptions before this one.
	First bool

	// HookID is the drain hook registered by Join, or empty when none was.
	HookID string

	// Generation identifies the activation of the name this subscription
	// joined. It changes every time the name goes from idle to active.
	Generation uint64
}

type subscription struct {
	name string
	id   string
	cb   Callback
	seq  uint64
}

// Registry is an in-process event registry: named subscriptions, synchronous
// and asynchronous emission, replayable state, and lifecycle hooks.
//
// Registry is safe for concurrent use. Callbacks and hooks always run with
// the registry unlocked, so they may call back into it.
type Registry struct {
	opts options

	mu     sync.Mutex
	byName map[string][]*subscription
	byID   map[string]*subscription
	states map[string]any
	hooks  hookTable
	seq    uint64

	// gens holds the current generation of every active name.
	gens   map[string]uint64
	genSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newRegistry(o)
}

func newRegistry(o options) *Registry {
	return &Registry{
		opts:   o,
		byName: make(map[string][]*subscription),
		byID:   make(map[string]*subscription),
		states: make(map[string]any),
		hooks:  newHookTable(),
		gens:   make(map[string]uint64),
	}
}

// Subscribe registers cb for name and returns the subscription id.
//
// If a state snapshot exists for name, cb is invoked with it before Subscribe
// returns. A replay error is logged; the subscription stays registered.
func (r *Registry) Subscribe(ctx context.Context, name string, cb Callback) string {
	return r.join(ctx, name, cb, nil).ID
}

// Join subscribes cb to name and reports whether name was idle beforehand.
//
// The idle check and the registration happen in one step, so of any number of
// concurrent Join calls for an idle name exactly one observes First. When
// onDrain is non-nil and the name was idle, onDrain is registered as an
// EventDrained(name) hook in that same step.
func (r *Registry) Join(ctx context.Context, name string, cb Callback, onDrain HookFunc) Membership {
	return r.join(ctx, name, cb, onDrain)
}

func (r *Registry) join(ctx context.Context, name string, cb Callback, onDrain HookFunc) Membership {
	if cb == nil {
		panic(ErrNilCallback)
	}

	id := r.opts.newID()
	var hookID string
	if onDrain != nil {
		hookID = r.opts.newID()
	}

	r.mu.Lock()
	r.seq++
	sub := &subscription{name: name, id: id, cb: cb, seq: r.seq}
	first := len(r.byName[name]) == 0
	if first {
		r.genSeq++
		r.gens[name] = r.genSeq
	}
	gen := r.gens[name]
	r.byName[name] = append(r.byName[name], sub)
	r.byID[id] = sub
	if first && onDrain != nil {
		r.hooks.add(hookID, EventDrained(name), onDrain)
	} else {
		hookID = ""
	}
	snapshot, replay := r.states[name]
	r.mu.Unlock()

	r.opts.metrics.RecordSubscription(ctx, name, 1)
	observability.LogSubscribe(r.opts.logger, name, id, replay)

	if replay {
		if err := cb(ctx, snapshot, id); err != nil {
			observability.LogReplayError(r.opts.logger, name, id, err)
		}
	}

	return Membership{ID: id, First: first, HookID: hookID, Generation: gen}
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
//
// Hooks fire after removal, in order: SubscriptionRemoved(id), then
// EventDrained(name) if no subscriptions remain for the name, then
// RegistryCleared if the registry holds no subscriptions at all.
func (r *Registry) Unsubscribe(ctx context.Context, id string) {
	r.mu.Lock()
	sub, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	calls := r.removeLocked([]*subscription{sub})
	r.mu.Unlock()

	r.finishRemoval(ctx, []*subscription{sub}, calls)
}

// UnsubscribeEvent removes every subscription for name in one batch, then
// fires SubscriptionRemoved for each, EventDrained(name), and RegistryCleared
// when applicable.
func (r *Registry) UnsubscribeEvent(ctx context.Context, name string) {
	r.Detach(ctx, name)
}

// Detach removes every subscription for name like UnsubscribeEvent and
// returns them in registration order. Removal happens in one step: a Join
// that arrives afterwards finds name idle, and none of the returned
// subscriptions will see a later emission. The caller may deliver to the
// returned callbacks directly.
func (r *Registry) Detach(ctx context.Context, name string) []Record {
	r.mu.Lock()
	subs := slices.Clone(r.byName[name])
	if len(subs) == 0 {
		r.mu.Unlock()
		return nil
	}
	calls := r.removeLocked(subs)
	r.mu.Unlock()

	r.finishRemoval(ctx, subs, calls)
	return toRecords(subs)
}

// Clear removes all subscriptions. The hook cascade matches removing each
// subscription in registration order and ends with a single RegistryCleared.
// Clearing an empty registry fires nothing.
func (r *Registry) Clear(ctx context.Context) {
	r.mu.Lock()
	subs := r.orderedLocked()
	if len(subs) == 0 {
		r.mu.Unlock()
		return
	}
	calls := r.removeLocked(subs)
	r.mu.Unlock()

	r.finishRemoval(ctx, subs, calls)
}

// removeLocked detaches subs and returns the hook calls the removal triggers.
// subs must be in removal order. Caller must hold r.mu.
func (r *Registry) removeLocked(subs []*subscription) []hookCall {
	var calls []hookCall
	removed := make(map[string]int, len(subs))
	for _, sub := range subs {
		delete(r.byID, sub.id)
		removed[sub.name]++
	}
	for name := range removed {
		remaining := slices.DeleteFunc(r.byName[name], func(s *subscription) bool {
			_, alive := r.byID[s.id]
			return !alive
		})
		if len(remaining) == 0 {
			delete(r.byName, name)
			delete(r.gens, name)
		} else {
			r.byName[name] = remaining
		}
	}

	// Drained hooks fire right after the last removal for that name.
	for _, sub := range subs {
		calls = append(calls, r.hooks.collect(SubscriptionRemoved(sub.id))...)
		removed[sub.name]--
		if removed[sub.name] == 0 && len(r.byName[sub.name]) == 0 {
			calls = append(calls, r.hooks.collect(EventDrained(sub.name))...)
		}
	}
	if len(r.byID) == 0 {
		calls = append(calls, r.hooks.collect(RegistryCleared())...)
	}
	return calls
}

func (r *Registry) finishRemoval(ctx context.Context, subs []*subscription, calls []hookCall) {
	for _, sub := range subs {
		r.opts.metrics.RecordSubscription(ctx, sub.name, -1)
		observability.LogUnsubscribe(r.opts.logger, sub.name, sub.id)
	}
	r.fire(ctx, calls)
}

// orderedLocked returns every subscription in registration order.
// Caller must hold r.mu.
func (r *Registry) orderedLocked() []*subscription {
	subs := slices.Collect(maps.Values(r.byID))
	slices.SortFunc(subs, func(a, b *subscription) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return subs
}

// listeners returns a copy of the current subscribers for name.
func (r *Registry) listeners(name string) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.byName[name])
}

// generationListeners is listeners restricted to generation gen. It returns
// nothing once that generation has drained.
func (r *Registry) generationListeners(name string, gen uint64) []*subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.gens[name]; !ok || cur != gen {
		return nil
	}
	return slices.Clone(r.byName[name])
}

// Generation returns the current generation of name, or false when name
// has no subscriptions.
func (r *Registry) Generation(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gen, ok := r.gens[name]
	return gen, ok
}

// HasEvent returns true if name has at least one subscription.
func (r *Registry) HasEvent(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName[name]) > 0
}

// Has returns true if id is a live subscription.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok
}

// HasCallback returns true if cb is registered under any name.
// Functions are compared by code pointer, so two closures created from the
// same function literal are indistinguishable.
func (r *Registry) HasCallback(cb Callback) bool {
	if cb == nil {
		return false
	}
	want := reflect.ValueOf(cb).Pointer()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byID {
		if reflect.ValueOf(sub.cb).Pointer() == want {
			return true
		}
	}
	return false
}

// Count returns the number of subscriptions for name.
func (r *Registry) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName[name])
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Names returns the event names that currently have subscriptions, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.byName))
}

// Subscriptions returns every live subscription in registration order.
func (r *Registry) Subscriptions() []Record {
	r.mu.Lock()
	subs := r.orderedLocked()
	r.mu.Unlock()
	return toRecords(subs)
}

func toRecords(subs []*subscription) []Record {
	out := make([]Record, len(subs))
	for i, sub := range subs {
		out[i] = Record{Name: sub.name, ID: sub.id, Callback: sub.cb}
	}
	return out
}

// Derive returns a new, independent registry holding the subscriptions for
// which filter returns true (all of them when filter is nil). Ids and
// registration order are kept. State snapshots and hooks are not copied.
func (r *Registry) Derive(filter func(Record) bool) *Registry {
	records := r.Subscriptions()
	if filter != nil {
		records = slices.DeleteFunc(records, func(rec Record) bool {
			return !filter(rec)
		})
	}
	return FromRecords(records, r.withOptions)
}

// withOptions copies r's options into a derived registry.
func (r *Registry) withOptions(o *options) {
	*o = r.opts
}

// FromRecords builds a registry pre-populated with records, in order.
// Records with a nil callback are skipped.
func FromRecords(records []Record, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := newRegistry(o)
	for _, rec := range records {
		if rec.Callback == nil {
			continue
		}
		d.seq++
		if _, ok := d.gens[rec.Name]; !ok {
			d.genSeq++
			d.gens[rec.Name] = d.genSeq
		}
		sub := &subscription{name: rec.Name, id: rec.ID, cb: rec.Callback, seq: d.seq}
		d.byName[rec.Name] = append(d.byName[rec.Name], sub)
		d.byID[rec.ID] = sub
	}
	return d
}
