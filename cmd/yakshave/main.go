// Yak shaving demo for metricz
// Shaves a handful of yaks inside tracked spans and reports span metrics
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/metricz/sink/logsink"
	"github.com/zoobzio/metricz/sink/otelsink"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const (
	sinkLog  = "log"
	sinkOTel = "otel"
	sinkNone = "none"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "yakshave",
		Short:        "Shave yaks and report span metrics",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(versionCmd())

	return root
}

func runCmd() *cobra.Command {
	var (
		yaks     int
		sinkName string
		policy   string
		logLevel string
		logDev   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Shave yaks inside timed spans",
		Long: "Shave yaks inside timed spans.\n\n" +
			"Defaults come from METRICZ_YAKS, METRICZ_SINK, METRICZ_POLICY,\n" +
			"METRICZ_LOG_LEVEL and METRICZ_LOG_DEV; flags take precedence.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("yaks") {
				cfg.Yaks = yaks
			}
			if flags.Changed("sink") {
				cfg.Sink = sinkName
			}
			if flags.Changed("policy") {
				cfg.Policy = policy
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-dev") {
				cfg.Log.Development = logDev
			}
			return runShave(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&yaks, "yaks", 3, "number of yaks to shave")
	cmd.Flags().StringVar(&sinkName, "sink", sinkLog, "metrics sink: log, otel or none")
	cmd.Flags().StringVar(&policy, "policy", "lazy", "record attachment policy: lazy or eager")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	cmd.Flags().BoolVar(&logDev, "log-dev", false, "human readable development logging")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "yakshave %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	}
}

func runShave(ctx context.Context, cfg *Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := metricz.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sink, shutdown, err := buildSink(cfg.Sink, logger, out)
	if err != nil {
		return err
	}

	tracer := metricz.New()
	tracer.AddLayer(metricz.NewMetrics(sink,
		metricz.WithPolicy(policy),
		metricz.WithLogger(logger),
	))
	tracer.SetPanicHook(func(layerID uint64, r interface{}) {
		logger.Error("metrics layer panicked", zap.Uint64("layer", layerID), zap.Any("panic", r))
	})

	logger.Debug("preparing to shave yaks", zap.Int("yaks", cfg.Yaks))
	shaved := NewShaver(tracer, logger).ShaveAll(ctx, cfg.Yaks)
	tracer.Close()

	logger.Debug("yak shaving completed.", zap.Bool("all_yaks_shaved", shaved == cfg.Yaks))
	_, _ = fmt.Fprintf(out, "shaved %d of %d yaks\n", shaved, cfg.Yaks)

	return shutdown(ctx)
}

// buildSink returns the configured sink and a function that flushes it.
func buildSink(name string, logger *zap.Logger, out io.Writer) (metricz.Sink, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch name {
	case sinkLog:
		return logsink.New(logger), noop, nil
	case sinkOTel:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
		if err != nil {
			return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		)
		sink, err := otelsink.New(otelsink.WithMeterProvider(provider))
		if err != nil {
			return nil, nil, err
		}
		return sink, provider.Shutdown, nil
	case sinkNone:
		return metricz.NoopSink{}, noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", name)
	}
}
