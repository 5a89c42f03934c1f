package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// MockCollector wraps a real collector with test utilities.
// Collection is synchronous and exports accumulate.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockCollector struct {
	exported []metricz.Event
	*metricz.Collector
	mu sync.Mutex
}

// NewMockCollector creates a synchronous collector for testing.
func NewMockCollector(t *testing.T, name string, bufferSize int) *MockCollector {
	t.Helper()
	collector := metricz.NewCollector(name, bufferSize)
	collector.SetSyncMode(true)
	t.Cleanup(collector.Close)
	return &MockCollector{Collector: collector}
}

// All returns every event exported so far, including pending ones.
func (m *MockCollector) All() []metricz.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exported = append(m.exported, m.Collector.Export()...)
	all := make([]metricz.Event, len(m.exported))
	copy(all, m.exported)
	return all
}

// Counters sums counter events by name.
func (m *MockCollector) Counters() map[string]uint64 {
	out := make(map[string]uint64)
	for _, ev := range m.All() {
		if ev.Kind == metricz.KindCounter {
			out[ev.Name] += ev.Count
		}
	}
	return out
}

// Durations groups duration events by name.
func (m *MockCollector) Durations() map[string][]time.Duration {
	out := make(map[string][]time.Duration)
	for _, ev := range m.All() {
		if ev.Kind == metricz.KindDuration {
			out[ev.Name] = append(out[ev.Name], ev.Elapsed)
		}
	}
	return out
}

// Stack is a tracer with a metrics layer, a fake clock and a collector.
type Stack struct {
	Tracer    *metricz.Tracer
	Metrics   *metricz.Metrics
	Clock     *clockz.FakeClock
	Collector *MockCollector
}

// NewStack builds a Stack. The tracer is closed on test cleanup.
func NewStack(t *testing.T, opts ...metricz.Option) *Stack {
	t.Helper()
	clock := clockz.NewFakeClock()
	collector := NewMockCollector(t, t.Name(), 1024)

	tracer := metricz.New().WithClock(clock)
	metrics := metricz.NewMetrics(collector, append([]metricz.Option{metricz.WithClock(clock)}, opts...)...)
	tracer.AddLayer(metrics)
	t.Cleanup(tracer.Close)

	return &Stack{Tracer: tracer, Metrics: metrics, Clock: clock, Collector: collector}
}

// Timed starts a tracked span, runs fn inside it and finishes it.
func (s *Stack) Timed(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := s.Tracer.StartSpan(ctx, name)
	defer span.Finish()
	span.WithTimer().InScope(func() { fn(ctx) })
}
