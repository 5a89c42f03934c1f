package metricz

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Policy decides when spans get a metric record.
type Policy int

const (
	// PolicyLazy attaches records only when tracking is requested.
	// Untracked spans cost nothing beyond a map miss per callback.
	PolicyLazy Policy = iota
	// PolicyEager attaches a record to every span at creation.
	PolicyEager
)

// ErrUnknownPolicy is returned by ParsePolicy for unrecognized names.
var ErrUnknownPolicy = errors.New("metricz: unknown policy")

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyLazy:
		return "lazy"
	case PolicyEager:
		return "eager"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts "lazy" or "eager" into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lazy":
		return PolicyLazy, nil
	case "eager":
		return PolicyEager, nil
	default:
		return PolicyLazy, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Metrics is a Layer that turns span lifecycles into counters and durations.
//
// Each tracked span owns one record in a table keyed by SpanID. The host
// serializes callbacks per span, so records are mutated without locks; the
// table itself only needs to tolerate disjoint keys from many goroutines.
type Metrics struct {
	sink    Sink
	clock   *Clock
	logger  *zap.Logger
	records sync.Map // SpanID -> *record
	live    atomic.Int64
	policy  Policy
}

// Option configures a Metrics layer.
type Option func(*Metrics)

// WithClock sets the time source used to stamp enters and exits.
func WithClock(clock clockz.Clock) Option {
	return func(m *Metrics) {
		m.clock = NewClock(clock)
	}
}

// WithPolicy sets the attachment policy. Defaults to PolicyLazy.
func WithPolicy(policy Policy) Option {
	return func(m *Metrics) {
		m.policy = policy
	}
}

// WithLogger sets the logger for diagnostic messages. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Metrics) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMetrics creates a metrics layer reporting to sink.
// A nil sink discards everything.
func NewMetrics(sink Sink, opts ...Option) *Metrics {
	if sink == nil {
		sink = NoopSink{}
	}
	m := &Metrics{
		sink:   sink,
		logger: zap.NewNop(),
		policy: PolicyLazy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.clock == nil {
		m.clock = NewClock(clockz.RealClock)
	}
	return m
}

// Policy returns the attachment policy.
func (m *Metrics) Policy() Policy {
	return m.policy
}

// Tracked reports whether a record is attached to the span.
func (m *Metrics) Tracked(id SpanID) bool {
	_, ok := m.records.Load(id)
	return ok
}

// Len returns the number of attached records.
func (m *Metrics) Len() int {
	return int(m.live.Load())
}

// OnNewSpan attaches a record under PolicyEager.
func (m *Metrics) OnNewSpan(id SpanID, spans SpanLookup) {
	m.mustSpan(id, spans, "OnNewSpan")
	if m.policy != PolicyEager {
		return
	}
	m.attach(id, &record{})
}

// OnEnter marks an enter on the span's record, if any.
func (m *Metrics) OnEnter(id SpanID, spans SpanLookup) {
	m.mustSpan(id, spans, "OnEnter")
	if r, ok := m.record(id); ok {
		r.markEntered(m.clock.Now())
	}
}

// OnExit marks an exit on the span's record, if any.
func (m *Metrics) OnExit(id SpanID, spans SpanLookup) {
	now := m.clock.Now()
	m.mustSpan(id, spans, "OnExit")
	if r, ok := m.record(id); ok {
		r.markExited(now)
	}
}

// OnClose flushes the span's record to the sink and detaches it.
// A span closed without ever exiting is discarded without metrics.
func (m *Metrics) OnClose(id SpanID, spans SpanLookup) {
	info := m.mustSpan(id, spans, "OnClose")
	v, ok := m.records.LoadAndDelete(id)
	if !ok {
		return
	}
	m.live.Add(-1)

	r := v.(*record)
	if r.enterCount > 0 && !r.complete() {
		m.logger.Debug("skipping flush for span closed without exit",
			zap.String("span", info.Name),
			zap.Uint64("span_id", uint64(id)),
			zap.Uint64("enter_count", r.enterCount),
		)
		return
	}
	r.flush(info.Name, m.sink)
}

// Track attaches a fresh record to the span, discarding any previous one.
// If the span is entered at the time of the request, the current
// activation counts as the first enter.
func (m *Metrics) Track(id SpanID, spans SpanLookup) {
	info := m.mustSpan(id, spans, "Track")
	r := &record{}
	if info.Depth > 0 {
		r.markEntered(m.clock.Now())
	}
	if prev := m.attach(id, r); prev != nil {
		m.logger.Debug("tracking reset",
			zap.String("span", info.Name),
			zap.Uint64("span_id", uint64(id)),
			zap.Uint64("discarded_enters", prev.enterCount),
		)
	}
}

func (m *Metrics) attach(id SpanID, r *record) *record {
	prev, loaded := m.records.Swap(id, r)
	if !loaded {
		m.live.Add(1)
		return nil
	}
	return prev.(*record)
}

func (m *Metrics) record(id SpanID) (*record, bool) {
	v, ok := m.records.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

// mustSpan resolves id or panics: a missing span means the host broke its contract.
func (*Metrics) mustSpan(id SpanID, spans SpanLookup, callback string) SpanInfo {
	info, ok := spans.Span(id)
	if !ok {
		panic(fmt.Errorf("%w: id %d in %s", ErrUnknownSpan, id, callback))
	}
	return info
}
