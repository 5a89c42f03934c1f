package main

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds demo configuration, read from METRICZ_* variables.
type Config struct {
	Sink   string    `envconfig:"SINK" default:"log"`
	Policy string    `envconfig:"POLICY" default:"lazy"`
	Log    LogConfig `envconfig:"LOG"`
	Yaks   int       `envconfig:"YAKS" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("metricz", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if c.Yaks < 0 {
		return fmt.Errorf("yaks must be >= 0, got %d", c.Yaks)
	}
	switch c.Sink {
	case sinkLog, sinkOTel, sinkNone:
	default:
		return fmt.Errorf("unknown sink %q (want %s, %s or %s)", c.Sink, sinkLog, sinkOTel, sinkNone)
	}
	return nil
}

// newLogger builds a zap logger: console encoding in development, JSON otherwise.
func newLogger(cfg LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
