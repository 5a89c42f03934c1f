package main

import (
	"context"
	"strconv"

	"github.com/zoobzio/metricz"
	"go.uber.org/zap"
)

// Shaver shaves yaks inside timed spans.
type Shaver struct {
	tracer *metricz.Tracer
	logger *zap.Logger
}

// NewShaver creates a Shaver that opens spans on tracer.
func NewShaver(tracer *metricz.Tracer, logger *zap.Logger) *Shaver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shaver{tracer: tracer, logger: logger}
}

// ShaveAll shaves yaks 1..yaks and returns how many were shaved.
func (s *Shaver) ShaveAll(ctx context.Context, yaks int) int {
	ctx, span := s.tracer.StartSpan(ctx, "shaving_yaks")
	defer span.Finish()
	span.SetTag("yaks_to_shave", strconv.Itoa(yaks))
	span.WithTimer()

	span.Enter()
	defer span.Exit()

	s.logger.Info("shaving yaks", zap.Int("yaks", yaks))

	shaved := 0
	for yak := 1; yak <= yaks; yak++ {
		ok := s.shave(ctx, yak)
		s.logger.Debug("yak_events", zap.Int("yak", yak), zap.Bool("shaved", ok))

		if !ok {
			s.handleUnshaved(ctx, yak)
			s.logger.Error("failed to shave yak!", zap.Int("yak", yak))
		} else {
			shaved++
		}

		s.logger.Debug("yak_events", zap.Int("yaks_shaved", shaved))
	}

	return shaved
}

func (s *Shaver) shave(ctx context.Context, yak int) bool {
	ctx, span := s.tracer.StartSpan(ctx, "shave")
	defer span.Finish()
	span.SetTag("yak", strconv.Itoa(yak))

	var shaved bool
	span.InScope(func() {
		// Already entered: tracking counts this activation.
		metricz.TrackCurrent(ctx)

		s.logger.Debug("hello! I'm gonna shave a yak.", zap.String("excitement", "yay!"))
		if yak == 3 {
			s.logger.Warn("could not locate yak!", zap.Int("yak", yak))
			return
		}
		s.logger.Debug("yak shaved successfully", zap.Int("yak", yak))
		shaved = true
	})
	return shaved
}

func (s *Shaver) handleUnshaved(ctx context.Context, yak int) {
	ctx, span := s.tracer.StartSpan(ctx, "handle_unshaved")
	defer span.Finish()
	span.SetTag("yak", strconv.Itoa(yak))

	span.InScope(func() {
		metricz.TrackCurrent(ctx)
	})
}
