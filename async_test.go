package metricz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// blockingSink blocks every call until released.
type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	names   []string
}

func (s *blockingSink) RecordCounter(name string, _ uint64) {
	<-s.release
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
}

func (s *blockingSink) RecordDuration(name string, _ time.Duration) {
	s.RecordCounter(name, 0)
}

func TestNewAsyncSinkValidation(t *testing.T) {
	_, err := NewAsyncSink(NoopSink{}, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = NewAsyncSink(NoopSink{}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestAsyncSinkForwards(t *testing.T) {
	defer goleak.VerifyNone(t)

	collector := NewCollector("async", 16)
	collector.SetSyncMode(true)
	defer collector.Close()

	sink, err := NewAsyncSink(collector, 2, 16)
	require.NoError(t, err)

	sink.RecordCounter("work", 1)
	sink.RecordDuration("work_ns", time.Millisecond)
	sink.Close()

	events := collector.Export()
	assert.ElementsMatch(t, []Event{
		{Name: "work", Kind: KindCounter, Count: 1},
		{Name: "work_ns", Kind: KindDuration, Elapsed: time.Millisecond},
	}, events)
	assert.Zero(t, sink.Dropped())
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &blockingSink{release: make(chan struct{})}
	sink, err := NewAsyncSink(next, 1, 1)
	require.NoError(t, err)

	// One call occupies the worker, one fills the queue, the rest drop.
	sink.RecordCounter("a", 1)
	require.Eventually(t, func() bool {
		return len(sink.workers.tasks) == 0
	}, time.Second, time.Millisecond)
	sink.RecordCounter("b", 1)
	sink.RecordCounter("c", 1)
	sink.RecordCounter("d", 1)

	assert.Equal(t, uint64(2), sink.Dropped())

	close(next.release)
	sink.Close()

	assert.Equal(t, []string{"a", "b"}, next.names)

	sink.RecordCounter("late", 1)
	assert.Equal(t, uint64(3), sink.Dropped())
}

func TestAsyncSinkWithLayer(t *testing.T) {
	defer goleak.VerifyNone(t)

	collector := NewCollector("layer", 16)
	collector.SetSyncMode(true)
	defer collector.Close()

	sink, err := NewAsyncSink(collector, 1, 16)
	require.NoError(t, err)

	tracer := New()
	tracer.AddLayer(NewMetrics(sink))

	ctx, span := tracer.StartSpan(context.Background(), "async-op")
	TrackCurrent(ctx)
	span.InScope(func() {})
	span.Finish()

	tracer.Close()
	sink.Close()

	events := collector.Export()
	require.Len(t, events, 2)
	assert.Equal(t, "async-op", events[0].Name)
	assert.Equal(t, "async-op"+DurationSuffix, events[1].Name)
}
