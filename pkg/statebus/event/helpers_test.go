package event_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/statebus/pkg/statebus/observability"
)

// fakeMetrics records what the registry reports.
type fakeMetrics struct {
	observability.NoopMetrics

	mu       sync.Mutex
	subs     int64
	emitLog  []string
	failures int
}

func (m *fakeMetrics) RecordSubscription(_ context.Context, _ string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs += delta
}

func (m *fakeMetrics) RecordEmit(_ context.Context, name, mode string, listeners int, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitLog = append(m.emitLog, fmt.Sprintf("%s/%s/%d", name, mode, listeners))
}

func (m *fakeMetrics) RecordHookFailure(_ context.Context, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *fakeMetrics) subscriptions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs
}

func (m *fakeMetrics) emits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.emitLog...)
}

func (m *fakeMetrics) hookFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// emitWhenSubscribed emits data on name once it has a subscriber.
func emitWhenSubscribed(reg interface {
	HasEvent(string) bool
	EmitSync(context.Context, string, any) error
}, name string, data any, delay time.Duration) {
	go func() {
		time.Sleep(delay)
		for !reg.HasEvent(name) {
			time.Sleep(time.Millisecond)
		}
		_ = reg.EmitSync(context.Background(), name, data)
	}()
}
