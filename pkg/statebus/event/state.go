package event

import "context"

// SetState stores data as the snapshot for name, then emits it with
// EmitSync. The snapshot is in place before any callback runs.
func (r *Registry) SetState(ctx context.Context, name string, data any) error {
	r.storeState(name, data)
	return r.EmitSync(ctx, name, data)
}

// SetStateAsync stores data as the snapshot for name, then emits it with
// EmitAsync.
func (r *Registry) SetStateAsync(ctx context.Context, name string, data any) error {
	r.storeState(name, data)
	return r.EmitAsync(ctx, name, data)
}

func (r *Registry) storeState(name string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[name] = data
}

// State returns the snapshot for name and whether one exists.
func (r *Registry) State(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.states[name]
	return v, ok
}

// HasState returns true if a snapshot exists for name.
func (r *Registry) HasState(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.states[name]
	return ok
}

// RemoveState deletes the snapshot for name. Subscriptions are unaffected.
func (r *Registry) RemoveState(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, name)
}
