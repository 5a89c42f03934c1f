package metricz

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// spanState is the host-side record of one span, shared by all its handles.
//
//nolint:govet // Field alignment optimized for readability
type spanState struct {
	tags      map[Tag]string
	startTime time.Time
	name      string
	id        SpanID
	parent    SpanID
	refs      int // Protected by mu.
	depth     atomic.Int64
	closed    atomic.Bool
	mu        sync.Mutex // Serializes lifecycle callbacks for this span.
	tagsMu    sync.Mutex // Protects tags only.
}

func (s *spanState) info() SpanInfo {
	return SpanInfo{
		Name:      s.name,
		ID:        s.id,
		ParentID:  s.parent,
		Depth:     int(s.depth.Load()),
		StartTime: s.startTime,
	}
}

// ActiveSpan is a reference to a span.
// Safe for concurrent use by multiple goroutines.
type ActiveSpan struct {
	state    *spanState
	tracer   *Tracer
	finished atomic.Bool
}

// ID returns the span ID.
func (a *ActiveSpan) ID() SpanID {
	return a.state.id
}

// Name returns the span name.
func (a *ActiveSpan) Name() string {
	return a.state.name
}

// ParentID returns the parent span ID, or zero for a root span.
func (a *ActiveSpan) ParentID() SpanID {
	return a.state.parent
}

// Closed reports whether the span has closed.
func (a *ActiveSpan) Closed() bool {
	return a.state.closed.Load()
}

// SetTag adds a key-value pair to the span.
// No-op if the span is closed.
func (a *ActiveSpan) SetTag(key Tag, value string) {
	if a.state.closed.Load() {
		return
	}

	a.state.tagsMu.Lock()
	defer a.state.tagsMu.Unlock()

	if a.state.tags == nil {
		a.state.tags = make(map[Tag]string)
	}
	a.state.tags[key] = value
}

// GetTag retrieves a tag value by key.
func (a *ActiveSpan) GetTag(key Tag) (string, bool) {
	a.state.tagsMu.Lock()
	defer a.state.tagsMu.Unlock()

	if a.state.tags == nil {
		return "", false
	}
	value, ok := a.state.tags[key]
	return value, ok
}

// Enter activates the span. Every Enter must be paired with an Exit.
// Spans may be entered again after exiting, and entries may nest.
func (a *ActiveSpan) Enter() {
	if a.finished.Load() {
		return
	}
	a.tracer.enter(a.state)
}

// Exit deactivates the span. An Exit without a matching Enter is ignored.
func (a *ActiveSpan) Exit() {
	a.tracer.exit(a.state)
}

// InScope runs fn with the span entered.
func (a *ActiveSpan) InScope(fn func()) {
	a.Enter()
	defer a.Exit()
	fn()
}

// Clone returns a new reference to the same span.
// The span closes once every reference has been finished.
// Returns nil if the span is already closed or this reference is finished.
func (a *ActiveSpan) Clone() *ActiveSpan {
	if a.finished.Load() || !a.tracer.retain(a.state) {
		return nil
	}
	return &ActiveSpan{state: a.state, tracer: a.tracer}
}

// Finish releases this reference. The span closes when the last
// reference is finished. Safe to call multiple times; subsequent calls
// on the same reference are no-ops.
func (a *ActiveSpan) Finish() {
	if !a.finished.CompareAndSwap(false, true) {
		return
	}
	a.tracer.release(a.state)
}

// Context creates a new context with this span embedded.
// The returned context can be used to start child spans.
func (a *ActiveSpan) Context(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	bundle := &contextBundle{tracer: a.tracer, span: a}
	return context.WithValue(parent, bundleKey, bundle)
}

// SpanFromContext extracts the current span from a context.
// Returns nil if no span is present.
func SpanFromContext(ctx context.Context) *ActiveSpan {
	if ctx == nil {
		return nil
	}

	if bundle, ok := ctx.Value(bundleKey).(*contextBundle); ok {
		return bundle.span
	}

	return nil
}
