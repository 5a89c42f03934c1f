package metricz

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
)

// contextBundle holds both tracer and span to reduce context allocations.
type contextBundle struct {
	tracer *Tracer
	span   *ActiveSpan
}

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const (
	bundleKey bundleKeyType = "metricz"
)

// spanIDs numbers spans across every Tracer in the process, so a layer
// registered on several tracers never sees two live spans share an ID.
var spanIDs atomic.Uint64

type layerEntry struct {
	layer Layer
	id    uint64
}

// Tracer hands out span IDs and dispatches lifecycle callbacks to layers.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	layers     []layerEntry
	panicHook  func(layerID uint64, r interface{})
	spans      sync.Map // SpanID -> *spanState
	clock      clockz.Clock
	layersLock sync.RWMutex
	hookLock   sync.RWMutex
	nextLayer  atomic.Uint64
	live       atomic.Int64
}

// New creates a new tracer.
// Uses the real clock for production behavior.
func New() *Tracer {
	return &Tracer{
		layers: make([]layerEntry, 0),
		clock:  clockz.RealClock,
	}
}

// WithClock returns a new tracer with the specified clock.
// Enables clock injection for deterministic testing.
func (*Tracer) WithClock(clock clockz.Clock) *Tracer {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Tracer{
		layers: make([]layerEntry, 0),
		clock:  clock,
	}
}

// AddLayer registers a layer and returns its ID.
// Spans already open reach the layer from their next callback. Returns 0 for nil.
func (t *Tracer) AddLayer(layer Layer) uint64 {
	if layer == nil {
		return 0
	}

	id := t.nextLayer.Add(1)

	t.layersLock.Lock()
	defer t.layersLock.Unlock()

	t.layers = append(t.layers, layerEntry{
		id:    id,
		layer: layer,
	})

	return id
}

// RemoveLayer unregisters a layer by ID. Records it holds for open spans
// are never flushed.
func (t *Tracer) RemoveLayer(id uint64) {
	t.layersLock.Lock()
	defer t.layersLock.Unlock()

	for i, entry := range t.layers {
		if entry.id == id {
			copy(t.layers[i:], t.layers[i+1:])
			t.layers = t.layers[:len(t.layers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a layer panics.
// Without a hook, layer panics propagate to the caller.
func (t *Tracer) SetPanicHook(hook func(layerID uint64, r interface{})) {
	t.hookLock.Lock()
	defer t.hookLock.Unlock()
	t.panicHook = hook
}

// Span resolves a live span. Implements SpanLookup.
func (t *Tracer) Span(id SpanID) (SpanInfo, bool) {
	v, ok := t.spans.Load(id)
	if !ok {
		return SpanInfo{}, false
	}
	return v.(*spanState).info(), true
}

// LiveSpans returns the number of spans that have not closed yet.
func (t *Tracer) LiveSpans() int {
	return int(t.live.Load())
}

// StartSpan creates a new span and returns it wrapped in an ActiveSpan.
// If the context carries a span from this tracer, the new span is its child.
// The span is not entered; call Enter or InScope to activate it.
func (t *Tracer) StartSpan(ctx context.Context, name Key) (context.Context, *ActiveSpan) {
	if ctx == nil {
		ctx = context.Background()
	}

	st := &spanState{
		id:        SpanID(spanIDs.Add(1)),
		name:      name,
		startTime: t.clock.Now(),
		refs:      1,
	}

	if parent := SpanFromContext(ctx); parent != nil && parent.tracer == t {
		st.parent = parent.state.id
	}

	t.spans.Store(st.id, st)
	t.live.Add(1)

	t.open(st)

	activeSpan := &ActiveSpan{
		state:  st,
		tracer: t,
	}

	bundle := &contextBundle{tracer: t, span: activeSpan}
	return context.WithValue(ctx, bundleKey, bundle), activeSpan
}

// Close force-closes every span that is still open and drops all layers.
// Layers receive OnClose for abandoned spans so they can release state.
func (t *Tracer) Close() {
	t.spans.Range(func(_, v any) bool {
		t.closeSpan(v.(*spanState))
		return true
	})

	t.layersLock.Lock()
	t.layers = nil
	t.layersLock.Unlock()
}

// open announces st to every layer.
func (t *Tracer) open(st *spanState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	t.dispatch(st.id, Layer.OnNewSpan)
}

// enter activates st. Caller must not hold st.mu.
func (t *Tracer) enter(st *spanState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed.Load() {
		return
	}
	st.depth.Add(1)
	t.dispatch(st.id, Layer.OnEnter)
}

// exit deactivates st. Unmatched exits are ignored.
func (t *Tracer) exit(st *spanState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed.Load() || st.depth.Load() == 0 {
		return
	}
	st.depth.Add(-1)
	t.dispatch(st.id, Layer.OnExit)
}

// release drops one reference and closes st when none remain.
func (t *Tracer) release(st *spanState) {
	st.mu.Lock()
	st.refs--
	last := st.refs <= 0
	st.mu.Unlock()

	if last {
		t.closeSpan(st)
	}
}

func (t *Tracer) retain(st *spanState) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed.Load() || st.refs <= 0 {
		return false
	}
	st.refs++
	return true
}

// closeSpan delivers OnClose exactly once, then forgets st.
func (t *Tracer) closeSpan(st *spanState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.closed.CompareAndSwap(false, true) {
		return
	}
	// Remove after dispatch so layers can still resolve the span.
	defer func() {
		t.spans.Delete(st.id)
		t.live.Add(-1)
	}()
	t.dispatch(st.id, Layer.OnClose)
}

// track asks every Tracker layer to start measuring st.
func (t *Tracer) track(st *spanState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed.Load() {
		return
	}
	for _, entry := range t.snapshot() {
		tracker, ok := entry.layer.(Tracker)
		if !ok {
			continue
		}
		t.safeCall(entry, func() {
			tracker.Track(st.id, t)
		})
	}
}

// dispatch calls fn on every layer. Caller must hold the span's lock.
func (t *Tracer) dispatch(id SpanID, fn func(Layer, SpanID, SpanLookup)) {
	for _, entry := range t.snapshot() {
		layer := entry.layer
		t.safeCall(entry, func() {
			fn(layer, id, t)
		})
	}
}

func (t *Tracer) snapshot() []layerEntry {
	t.layersLock.RLock()
	defer t.layersLock.RUnlock()

	if len(t.layers) == 0 {
		return nil
	}
	layers := make([]layerEntry, len(t.layers))
	copy(layers, t.layers)
	return layers
}

func (t *Tracer) safeCall(entry layerEntry, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.hookLock.RLock()
			hook := t.panicHook
			t.hookLock.RUnlock()
			if hook == nil {
				panic(r)
			}
			hook(entry.id, r)
		}
	}()
	fn()
}
