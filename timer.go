package metricz

import "context"

// Track asks every metrics layer on the span's tracer to start measuring it.
// Tracking again resets the measurement, discarding earlier enters.
// No-op for a nil or closed span, or when no layer can track.
func Track(span *ActiveSpan) {
	if span == nil || span.tracer == nil {
		return
	}
	span.tracer.track(span.state)
}

// TrackCurrent tracks the span carried by ctx, if any.
func TrackCurrent(ctx context.Context) {
	Track(SpanFromContext(ctx))
}

// WithTimer tracks the span and returns it for chaining.
func (a *ActiveSpan) WithTimer() *ActiveSpan {
	Track(a)
	return a
}
