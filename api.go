// Package metricz turns span lifecycles into timing and count metrics.
//
// metricz attaches a metrics layer to a minimal span host and converts
// create/enter/exit/close events into one counter and one duration per
// span, emitted exactly once when the span closes.
//
// Core Components:
//   - Tracer: Hands out span IDs and dispatches lifecycle callbacks to layers.
//   - ActiveSpan: A reference-counted span handle that can be entered many times.
//   - Metrics: The layer that records enter counts and first-enter/last-exit times.
//   - Sink: Receives counters and durations when a tracked span closes.
//
// Basic Usage:
//
//	collector := metricz.NewCollector("metrics", 1024)
//	tracer := metricz.New()
//	tracer.AddLayer(metricz.NewMetrics(collector))
//	defer tracer.Close()
//
//	ctx, span := tracer.StartSpan(ctx, "work")
//	span.WithTimer()
//	span.InScope(func() {
//		doWork(ctx)
//	})
//	span.Finish() // counter("work", 1) and duration("work_ns", ...)
//
// Tracking:
//
// Spans are not measured unless tracking is requested with Track,
// TrackCurrent or WithTimer. Tracking again resets the record, so only
// enters after the latest request are counted. Use WithPolicy(PolicyEager)
// to track every span from creation.
//
// Re-entrant Spans:
//
// A span entered N times reports counter(name, N) and a single duration
// from its first enter to its last exit, including idle gaps between
// activations.
//
// Thread Safety:
//
// Tracer and ActiveSpan are safe for concurrent use. Callbacks for one
// span are serialized by the tracer; different spans proceed in parallel.
//
// Resource Cleanup:
//
// Every span must be finished once per reference (StartSpan and each
// Clone). Records are released when the last reference is finished.
package metricz

// Key represents a span name.
type Key = string

// Tag represents a span tag key.
type Tag = string

// DurationSuffix is appended to a span name to form its duration metric name.
const DurationSuffix = "_ns"
