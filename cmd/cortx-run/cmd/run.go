package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/google/uuid"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/cortx-dev/cortx-run/internal/config"
	"github.com/cortx-dev/cortx-run/internal/launcher"
	"github.com/cortx-dev/cortx-run/internal/logging"
	"github.com/cortx-dev/cortx-run/internal/metrics"
	"github.com/cortx-dev/cortx-run/internal/shutdown"
	"github.com/cortx-dev/cortx-run/internal/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start both services and wait for Ctrl+C",
	Long: `Starts the compute service, waits the grace period, then starts the dev
server. Blocks until SIGINT or SIGTERM, then terminates both children.

Exit status is 0 after an interrupt and 1 if a tool is missing, the
configured group cannot be adopted, or a child fails to start.`,
	RunE: runLauncher,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLauncher(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if code := launch(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.Dir != "" {
		return logging.NewFileLogger(cfg.Log.Dir, "cortx-run", level, cfg.Log.JSON)
	}
	return logging.NewLogger(level, cfg.Log.JSON), nil
}

func childSpec(c config.ChildConfig) launcher.ChildSpec {
	return launcher.ChildSpec{
		Name:    c.Name,
		Command: c.Command,
		Args:    c.Args,
		Dir:     c.Dir,
		Env:     c.Env,
	}
}

// launch wires logging, signals, tracing and metrics around one launcher
// run and returns the process exit status.
func launch(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) int {
	base, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer base.Close()

	session := uuid.New().String()
	logger := base.WithField("session", session)

	mgr := shutdown.New(cfg.StopTimeout, logger)
	ctx, stop := mgr.Context(ctx)
	defer stop()

	provider, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
		SessionID:      session,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Endpoint != "",
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	mgr.Register("tracing", provider.Shutdown)

	strategy := launcher.SelectStrategy(launcher.StrategyOptions{
		Preflight:   cfg.Preflight,
		InstallHint: cfg.InstallHint,
		Group:       cfg.Group,
	})

	collector := metrics.NewCollector()
	l := launcher.New(launcher.Options{
		Compute:     childSpec(cfg.Compute),
		DevServer:   childSpec(cfg.DevServer),
		GracePeriod: cfg.GracePeriod,
		StopTimeout: cfg.StopTimeout,
		Strategy:    strategy,
		Logger:      logger,
		Recorder:    collector,
		Tracer:      provider.Tracer(),
		Out:         stdout,
	})

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, collector, func() interface{} { return l.Snapshot() }, logger)
		if err := srv.Start(); err != nil {
			fmt.Fprintf(stderr, "Error: metrics server: %v\n", err)
			mgr.Shutdown()
			return 1
		}
		mgr.Register("metrics-server", shutdown.StopServer(srv))

		sampleCtx, cancelSampling := context.WithCancel(context.Background())
		go collector.WatchProcesses(sampleCtx, cfg.Metrics.SampleInterval, l.PIDs, logger)
		mgr.Register("metrics-sampler", func(context.Context) error {
			cancelSampling()
			return nil
		})
	}

	logger.Info("Starting cortx-run", logging.Fields{
		"version":      version.Version,
		"os":           runtime.GOOS,
		"strategy":     strategy.Name(),
		"grace_period": cfg.GracePeriod.String(),
	})

	runErr := l.Run(ctx)

	if reason := mgr.Reason(); reason != "" {
		logger.Info("Launcher stopped", logging.Fields{"signal": reason})
	}
	if err := mgr.Shutdown(); err != nil {
		logger.Warn("Teardown incomplete", logging.Fields{"error": err.Error()})
	}

	// Startup diagnostics go to stdout next to "terminated"
	if runErr != nil {
		for _, line := range launcher.Describe(runErr) {
			fmt.Fprintln(stdout, line)
		}
	}
	return launcher.ExitCode(runErr)
}
