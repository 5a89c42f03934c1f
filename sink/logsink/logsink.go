// Package logsink writes span metrics as structured zap log entries.
package logsink

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink logs every metric at a fixed level.
type Sink struct {
	logger *zap.Logger
	level  zapcore.Level
}

// Option configures a Sink.
type Option func(*Sink)

// WithLevel sets the level metrics are logged at. Defaults to Info.
func WithLevel(level zapcore.Level) Option {
	return func(s *Sink) {
		s.level = level
	}
}

// New creates a Sink writing to logger. A nil logger discards output.
func New(logger *zap.Logger, opts ...Option) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sink{
		logger: logger.Named("metrics"),
		level:  zapcore.InfoLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordCounter logs a counter.
func (s *Sink) RecordCounter(name string, value uint64) {
	if ce := s.logger.Check(s.level, "counter"); ce != nil {
		ce.Write(
			zap.String("name", name),
			zap.Uint64("value", value),
		)
	}
}

// RecordDuration logs a duration with a human readable rendering.
func (s *Sink) RecordDuration(name string, elapsed time.Duration) {
	if ce := s.logger.Check(s.level, "histogram"); ce != nil {
		ce.Write(
			zap.String("name", name),
			zap.Duration("elapsed", elapsed),
			zap.String("value", Readable(elapsed)),
		)
	}
}

// Readable renders d with a unit chosen by magnitude: ns, μs, ms below
// two seconds, then s.
func Readable(d time.Duration) string {
	f := float64(d.Nanoseconds())
	switch {
	case f < 1_000:
		return fmt.Sprintf("%.0fns", f)
	case f < 1_000_000:
		return fmt.Sprintf("%.0fμs", f/1_000)
	case f < 2_000_000_000:
		return fmt.Sprintf("%.2fms", f/1_000_000)
	default:
		return fmt.Sprintf("%.3fs", f/1_000_000_000)
	}
}
