package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/romhustler-mirror/internal/adapter/control"
	"github.com/vertextoedge/romhustler-mirror/internal/config"
	"github.com/vertextoedge/romhustler-mirror/internal/logger"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

const version = "0.1.0"

var (
	configPath string
	argsJSON   string
)

var rootCmd = &cobra.Command{
	Use:   "romhustler-mirror <data-dir> [unused] [log-dir]",
	Short: "Mirror popular ROMs into a data directory",
	Long: `romhustler-mirror is a mirror plugin. It downloads the games listed in
games_popular.txt into <data-dir>/<game-id>/ and reports progress to the
host mirror process over its control socket.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&argsJSON, "args-json", "", "Invocation as a JSON object instead of positional arguments")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "romhustler-mirror: %v\n", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	inv, err := parseInvocation(args)
	if err != nil {
		reportEarlyFailure(err)
		return err
	}

	// Load configuration
	cfg, err := config.Load(configPath, inv)
	if err != nil {
		reportEarlyFailure(err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	if err := logger.InitWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.GetLogFile()); err != nil {
		reportEarlyFailure(err)
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting romhustler-mirror",
		zap.String("version", version),
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("debug", cfg.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter, err := openReporter(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer reporter.Close()

	if err := run(ctx, cfg, reporter, zapLogger); err != nil {
		zapLogger.Error("mirror run failed", zap.Error(err))
		if repErr := reporter.ErrorOccurred(err.Error()); repErr != nil {
			zapLogger.Error("failed to report error to host", zap.Error(repErr))
		}
		return err
	}

	zapLogger.Info("mirror run finished")
	return nil
}

// parseInvocation reads the invocation from --args-json or the positional
// arguments. The debug flag may also come from the environment.
func parseInvocation(args []string) (*config.Invocation, error) {
	var (
		inv *config.Invocation
		err error
	)
	if argsJSON != "" {
		inv, err = config.ParseArgsJSON(argsJSON)
	} else {
		inv, err = config.ParseArgs(args)
	}
	if err != nil {
		return nil, err
	}
	if config.DebugFromEnv(os.Getenv) {
		inv.Debug = true
	}
	return inv, nil
}

func openReporter(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (port.ProgressReporter, error) {
	if !cfg.Control.Enabled {
		zapLogger.Info("control socket disabled, progress is only logged")
		return control.NewDiscard(zapLogger), nil
	}
	reporter, err := control.Dial(ctx, cfg.Control.SocketPath, cfg.Control.GetWriteTimeout(), zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host: %w", err)
	}
	return reporter, nil
}

// reportEarlyFailure tells the host about failures that happen before the
// configuration names a socket. Best effort: the host may not be listening.
func reportEarlyFailure(cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reporter, err := control.Dial(ctx, control.DefaultSocketPath, 5*time.Second, zap.NewNop())
	if err != nil {
		return
	}
	defer reporter.Close()
	_ = reporter.ErrorOccurred(cause.Error())
}
