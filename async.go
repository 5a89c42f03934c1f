package metricz

import (
	"sync"
	"sync/atomic"
	"time"
)

// AsyncSink forwards metrics to another sink on a bounded worker pool.
// Recording never blocks: when the queue is full the metric is dropped.
type AsyncSink struct {
	next    Sink
	workers *workerPool
	dropped atomic.Uint64
}

// NewAsyncSink starts workers goroutines draining a queue of queueSize metrics into next.
func NewAsyncSink(next Sink, workers, queueSize int) (*AsyncSink, error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	if queueSize <= 0 {
		return nil, ErrInvalidQueueSize
	}
	if next == nil {
		next = NoopSink{}
	}

	s := &AsyncSink{next: next}
	s.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &s.dropped,
	}

	s.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.workers.run()
	}
	return s, nil
}

// RecordCounter queues a counter for the wrapped sink.
func (s *AsyncSink) RecordCounter(name string, value uint64) {
	s.workers.submit(func() {
		s.next.RecordCounter(name, value)
	})
}

// RecordDuration queues a duration for the wrapped sink.
func (s *AsyncSink) RecordDuration(name string, elapsed time.Duration) {
	s.workers.submit(func() {
		s.next.RecordDuration(name, elapsed)
	})
}

// Dropped returns the number of metrics dropped due to a full queue.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains queued metrics and stops the workers.
func (s *AsyncSink) Close() {
	s.workers.shutdown()
}

// workerPool manages a fixed number of workers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks    chan func()
	stop     chan struct{}
	dropped  *atomic.Uint64
	wg       sync.WaitGroup
	stopOnce sync.Once
	closed   atomic.Bool
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			// Drain what is already queued.
			for {
				select {
				case task := <-w.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

func (w *workerPool) submit(task func()) {
	if w.closed.Load() {
		w.dropped.Add(1)
		return
	}
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		close(w.stop)
		w.wg.Wait()
	})
}
