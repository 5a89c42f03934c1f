package metricz

import "fmt"

// record accumulates timing for a single tracked span.
// Access is serialized by the host, so record carries no lock.
type record struct {
	enterCount uint64
	entered    Timestamp
	exited     Timestamp
	hasEntered bool
	hasExited  bool
	flushed    bool
}

func (r *record) markEntered(now Timestamp) {
	r.enterCount++
	if !r.hasEntered {
		r.entered = now
		r.hasEntered = true
	}
}

// markExited overwrites the exit time; only the last exit is flushed.
func (r *record) markExited(now Timestamp) {
	r.exited = now
	r.hasExited = true
}

// complete reports whether flush would emit metrics.
func (r *record) complete() bool {
	return r.enterCount > 0 && !r.flushed && r.hasEntered && r.hasExited
}

// flush emits counter(name, enterCount) and duration(name_ns, exited-entered).
// Timestamps are consumed; enterCount stays readable.
func (r *record) flush(name string, sink Sink) {
	if r.enterCount == 0 || r.flushed {
		return
	}
	if !r.hasEntered || !r.hasExited {
		panic(fmt.Errorf("%w: span %q entered %d times", ErrIncompleteTiming, name, r.enterCount))
	}

	elapsed := r.exited.Sub(r.entered)
	r.hasEntered, r.hasExited = false, false
	r.entered, r.exited = 0, 0
	r.flushed = true

	sink.RecordCounter(name, r.enterCount)
	sink.RecordDuration(name+DurationSuffix, elapsed)
}
