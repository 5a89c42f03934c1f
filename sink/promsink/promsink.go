// Package promsink reports span metrics to Prometheus.
//
// All counters share one CounterVec and all durations share one
// HistogramVec, labelled by the metric name handed to the sink, so span
// names never have to be valid Prometheus metric names.
package promsink

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NameLabel is the label carrying the metric name.
const NameLabel = "name"

type config struct {
	registerer prometheus.Registerer
	namespace  string
	subsystem  string
	buckets    []float64
}

// Option configures a Sink.
type Option func(*config)

// WithRegisterer sets where the collectors are registered.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(cfg *config) {
		if r != nil {
			cfg.registerer = r
		}
	}
}

// WithNamespace sets the metric namespace. Defaults to "metricz".
func WithNamespace(namespace string) Option {
	return func(cfg *config) {
		cfg.namespace = namespace
	}
}

// WithSubsystem sets the metric subsystem. Defaults to "span".
func WithSubsystem(subsystem string) Option {
	return func(cfg *config) {
		cfg.subsystem = subsystem
	}
}

// WithBuckets sets histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(cfg *config) {
		if len(buckets) > 0 {
			cfg.buckets = buckets
		}
	}
}

// Sink records metricz counters and durations as Prometheus collectors.
type Sink struct {
	enters    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New creates and registers a Sink. If identical collectors are already
// registered, they are reused.
func New(opts ...Option) (*Sink, error) {
	cfg := &config{
		registerer: prometheus.DefaultRegisterer,
		namespace:  "metricz",
		subsystem:  "span",
		buckets:    prometheus.ExponentialBuckets(0.000001, 4, 14),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	enters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "enters_total",
			Help:      "Total number of times tracked spans were entered",
		},
		[]string{NameLabel},
	)
	durations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "duration_seconds",
			Help:      "Time from first enter to last exit of tracked spans",
			Buckets:   cfg.buckets,
		},
		[]string{NameLabel},
	)

	var err error
	if enters, err = register(cfg.registerer, enters); err != nil {
		return nil, err
	}
	if durations, err = register(cfg.registerer, durations); err != nil {
		return nil, err
	}

	return &Sink{enters: enters, durations: durations}, nil
}

func register[C prometheus.Collector](r prometheus.Registerer, c C) (C, error) {
	if err := r.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("promsink: register collector: %w", err)
	}
	return c, nil
}

// RecordCounter adds value to the enters counter labelled name.
func (s *Sink) RecordCounter(name string, value uint64) {
	s.enters.WithLabelValues(name).Add(float64(value))
}

// RecordDuration observes elapsed seconds on the histogram labelled name.
func (s *Sink) RecordDuration(name string, elapsed time.Duration) {
	s.durations.WithLabelValues(name).Observe(elapsed.Seconds())
}
