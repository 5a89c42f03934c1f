package metricz

import "time"

// Sink receives metrics when a tracked span closes.
// Implementations must be safe for concurrent use and must not block.
type Sink interface {
	// RecordCounter adds value to the counter called name.
	RecordCounter(name string, value uint64)
	// RecordDuration records one elapsed observation under name.
	RecordDuration(name string, elapsed time.Duration)
}

// EventKind distinguishes counter and duration events.
type EventKind int

const (
	// KindCounter is a counter increment.
	KindCounter EventKind = iota
	// KindDuration is a duration observation.
	KindDuration
)

// String returns the lowercase kind name.
func (k EventKind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Event is a single metric emission.
type Event struct {
	Name    string        `json:"name"`
	Kind    EventKind     `json:"kind"`
	Count   uint64        `json:"count,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// NoopSink discards everything.
type NoopSink struct{}

// RecordCounter does nothing.
func (NoopSink) RecordCounter(string, uint64) {}

// RecordDuration does nothing.
func (NoopSink) RecordDuration(string, time.Duration) {}

// MultiSink fans every metric out to each of its sinks in order.
type MultiSink []Sink

// RecordCounter forwards to every sink.
func (m MultiSink) RecordCounter(name string, value uint64) {
	for _, s := range m {
		s.RecordCounter(name, value)
	}
}

// RecordDuration forwards to every sink.
func (m MultiSink) RecordDuration(name string, elapsed time.Duration) {
	for _, s := range m {
		s.RecordDuration(name, elapsed)
	}
}
