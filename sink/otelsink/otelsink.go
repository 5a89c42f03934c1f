// Package otelsink reports span metrics through the OpenTelemetry metric API.
//
// Counters become Int64Counter instruments and durations become
// Float64Histogram instruments in nanoseconds, both named exactly as the
// metric name handed to the sink. Instruments are created on first use and
// cached.
package otelsink

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const defaultInstrumentationName = "github.com/zoobzio/metricz"

type config struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	attrs               []attribute.KeyValue
}

// Option configures a Sink.
type Option func(*config)

// WithInstrumentationName sets the meter name.
func WithInstrumentationName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider sets the MeterProvider. Defaults to the global provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *config) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithAttributes adds constant attributes to every measurement.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(cfg *config) {
		cfg.attrs = append(cfg.attrs, attrs...)
	}
}

// Sink records metricz counters and durations as OTel instruments.
type Sink struct {
	meter      metric.Meter
	attrs      metric.MeasurementOption
	counters   sync.Map // name -> metric.Int64Counter
	histograms sync.Map // name -> metric.Float64Histogram
}

// New creates a Sink.
func New(opts ...Option) (*Sink, error) {
	cfg := &config{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)
	if meter == nil {
		return nil, fmt.Errorf("otelsink: provider returned nil meter for %q", cfg.instrumentationName)
	}

	return &Sink{
		meter: meter,
		attrs: metric.WithAttributes(cfg.attrs...),
	}, nil
}

// RecordCounter adds value to the counter called name.
// Instrument creation errors go to the global OTel error handler.
func (s *Sink) RecordCounter(name string, value uint64) {
	counter, err := s.counter(name)
	if err != nil {
		otel.Handle(err)
		return
	}
	if value > math.MaxInt64 {
		value = math.MaxInt64
	}
	counter.Add(context.Background(), int64(value), s.attrs)
}

// RecordDuration records elapsed in nanoseconds on the histogram called name.
func (s *Sink) RecordDuration(name string, elapsed time.Duration) {
	histogram, err := s.histogram(name)
	if err != nil {
		otel.Handle(err)
		return
	}
	histogram.Record(context.Background(), float64(elapsed.Nanoseconds()), s.attrs)
}

func (s *Sink) counter(name string) (metric.Int64Counter, error) {
	if v, ok := s.counters.Load(name); ok {
		return v.(metric.Int64Counter), nil
	}
	counter, err := s.meter.Int64Counter(name,
		metric.WithDescription("span enter count"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("otelsink: create counter %q: %w", name, err)
	}
	v, _ := s.counters.LoadOrStore(name, counter)
	return v.(metric.Int64Counter), nil
}

func (s *Sink) histogram(name string) (metric.Float64Histogram, error) {
	if v, ok := s.histograms.Load(name); ok {
		return v.(metric.Float64Histogram), nil
	}
	histogram, err := s.meter.Float64Histogram(name,
		metric.WithDescription("span first-enter to last-exit duration"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return nil, fmt.Errorf("otelsink: create histogram %q: %w", name, err)
	}
	v, _ := s.histograms.LoadOrStore(name, histogram)
	return v.(metric.Float64Histogram), nil
}
