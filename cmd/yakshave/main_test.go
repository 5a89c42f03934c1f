package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/metricz"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, sinkLog, cfg.Sink)
	assert.Equal(t, "lazy", cfg.Policy)
	assert.Equal(t, 3, cfg.Yaks)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("METRICZ_SINK", "otel")
	t.Setenv("METRICZ_POLICY", "eager")
	t.Setenv("METRICZ_YAKS", "7")
	t.Setenv("METRICZ_LOG_LEVEL", "debug")
	t.Setenv("METRICZ_LOG_DEV", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, sinkOTel, cfg.Sink)
	assert.Equal(t, "eager", cfg.Policy)
	assert.Equal(t, 7, cfg.Yaks)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("METRICZ_YAKS", "many")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{Sink: sinkNone}).Validate())
	assert.Error(t, (&Config{Sink: sinkLog, Yaks: -1}).Validate())
	assert.Error(t, (&Config{Sink: "statsd"}).Validate())
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestShaveAllRecordsSpans(t *testing.T) {
	collector := metricz.NewCollector("yaks", 32)
	collector.SetSyncMode(true)
	defer collector.Close()

	tracer := metricz.New()
	tracer.AddLayer(metricz.NewMetrics(collector))

	shaved := NewShaver(tracer, nil).ShaveAll(context.Background(), 3)
	tracer.Close()

	assert.Equal(t, 2, shaved)

	var names []string
	for _, ev := range collector.Export() {
		names = append(names, ev.Name)
		if ev.Kind == metricz.KindCounter {
			assert.Equal(t, uint64(1), ev.Count, ev.Name)
		}
	}
	assert.Equal(t, []string{
		"shave", "shave_ns",
		"shave", "shave_ns",
		"shave", "shave_ns",
		"handle_unshaved", "handle_unshaved_ns",
		"shaving_yaks", "shaving_yaks_ns",
	}, names)
}

func TestRunShave(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		expect []string
	}{
		{
			name:   "none",
			cfg:    Config{Sink: sinkNone, Policy: "lazy", Yaks: 3, Log: LogConfig{Level: "error"}},
			expect: []string{"shaved 2 of 3 yaks"},
		},
		{
			name:   "log",
			cfg:    Config{Sink: sinkLog, Policy: "eager", Yaks: 1, Log: LogConfig{Level: "error"}},
			expect: []string{"shaved 1 of 1 yaks"},
		},
		{
			name:   "otel",
			cfg:    Config{Sink: sinkOTel, Policy: "lazy", Yaks: 2, Log: LogConfig{Level: "error"}},
			expect: []string{"shaved 2 of 2 yaks", "shaving_yaks_ns", "shave"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cfg := tt.cfg
			require.NoError(t, runShave(context.Background(), &cfg, &out))
			for _, want := range tt.expect {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestRunShaveRejectsBadPolicy(t *testing.T) {
	cfg := Config{Sink: sinkNone, Policy: "sometimes", Log: LogConfig{Level: "error"}}
	assert.ErrorIs(t, runShave(context.Background(), &cfg, &bytes.Buffer{}), metricz.ErrUnknownPolicy)
}

func TestRootCommand(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "yakshave dev")
	})

	t.Run("run flags override env", func(t *testing.T) {
		t.Setenv("METRICZ_YAKS", "9")
		t.Setenv("METRICZ_SINK", "otel")

		var out bytes.Buffer
		cmd := rootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"run", "--yaks", "2", "--sink", "none", "--log-level", "error"})

		require.NoError(t, cmd.Execute())
		assert.Equal(t, "shaved 2 of 2 yaks\n", out.String())
	})

	t.Run("run rejects arguments", func(t *testing.T) {
		cmd := rootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"run", "extra"})

		assert.Error(t, cmd.Execute())
	})
}
