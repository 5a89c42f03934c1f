package reliability

import (
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config controls reliability test intensity, read from METRICZ_RELIABILITY_*.
type Config struct {
	Level            string        `envconfig:"LEVEL"`
	Duration         time.Duration `envconfig:"DURATION" default:"30s"`
	MaxGoroutines    int           `envconfig:"MAX_GOROUTINES" default:"100"`
	FailureThreshold float64       `envconfig:"FAILURE_THRESHOLD" default:"0.05"`
}

// loadConfig reads the reliability configuration or fails the test.
func loadConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	if err := envconfig.Process("metricz_reliability", &cfg); err != nil {
		t.Fatalf("reliability config: %v", err)
	}
	return cfg
}

// requireLevel skips unless METRICZ_RELIABILITY_LEVEL is one of levels.
func requireLevel(t *testing.T, levels ...string) Config {
	t.Helper()
	cfg := loadConfig(t)
	for _, level := range levels {
		if cfg.Level == level {
			return cfg
		}
	}
	t.Skipf("METRICZ_RELIABILITY_LEVEL=%q, skipping", cfg.Level)
	return cfg
}
