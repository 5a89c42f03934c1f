package metricz

import "time"

// SpanID identifies a span within one Tracer. Zero is never a valid ID.
type SpanID uint64

// SpanInfo is the host's view of a live span, handed to layers.
type SpanInfo struct {
	StartTime time.Time
	Name      string
	ID        SpanID
	ParentID  SpanID
	// Depth is the number of enters not yet matched by an exit.
	Depth int
}

// SpanLookup resolves live spans by ID.
// IDs passed to a Layer callback are guaranteed to resolve for its duration.
type SpanLookup interface {
	Span(id SpanID) (SpanInfo, bool)
}

// Layer receives span lifecycle callbacks from a Tracer.
//
// Callbacks for one span never run concurrently and always arrive in the
// order OnNewSpan, (OnEnter, OnExit)*, OnClose. OnClose is delivered once.
type Layer interface {
	OnNewSpan(id SpanID, spans SpanLookup)
	OnEnter(id SpanID, spans SpanLookup)
	OnExit(id SpanID, spans SpanLookup)
	OnClose(id SpanID, spans SpanLookup)
}

// Tracker is implemented by layers that can start measuring a span on request.
type Tracker interface {
	Track(id SpanID, spans SpanLookup)
}
