package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/iwvelando/robust-portfolio/internal/analysis"
	"github.com/iwvelando/robust-portfolio/internal/config"
	"github.com/iwvelando/robust-portfolio/internal/server"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/output"
	"github.com/iwvelando/robust-portfolio/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configLocation string
	logLevel       string
	outputFormat   string

	serverConfigLocation string
	listenAddress        string
	maxUploadSize        string
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	// Logs go to stderr unless a file is configured so stdout carries only the report.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		cfg.OutputPaths = []string{loggingConfig.OutputFile}
		cfg.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return cfg.Build()
}

var rootCmd = &cobra.Command{
	Use:   "robust-portfolio",
	Short: "Ambiguity-robust bond/stock allocation under a Vasicek short rate",
	Long: `robust-portfolio solves the dynamic allocation of a CRRA investor who trades
a money market account, a zero-coupon bond and a stock while being uncertain
about the market prices of risk, volatilities and correlation.

It reports the worst-case strategy, compares it with the strategy of an
investor who trusts the reference model, and evaluates both by Monte Carlo
simulation under every scenario in the ambiguity set.

Run without a subcommand to analyse the configuration file.`,
	SilenceUsage: true,
	RunE:         runAnalysis,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve the strategies and print the analysis report",
	RunE:  runAnalysis,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis API over HTTP",
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{rootCmd, runCmd} {
		cmd.Flags().StringVar(&configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
		cmd.Flags().StringVar(&outputFormat, "output-format", "", "type of output override: pretty, csv, yaml")
	}

	serveCmd.Flags().StringVar(&serverConfigLocation, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	serveCmd.Flags().StringVar(&listenAddress, "address", "", "listen address override")
	serveCmd.Flags().StringVar(&maxUploadSize, "max-upload-size", "", "maximum configuration upload size override (e.g. 256K, 1M)")

	rootCmd.AddCommand(runCmd, serveCmd, versionCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	conf, err := config.LoadConfiguration(configLocation)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", configLocation, err)
	}

	logger, err := initializeLogger(conf.Logging, logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// CLI override takes precedence over config
	format := conf.Output.Format
	if outputFormat != "" {
		format = outputFormat
	}
	if format == "" {
		format = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(format); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := analysis.Analyze(ctx, logger, *conf)
	if err != nil {
		logger.Error("analysis failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		return err
	}

	return writeReport(cmd.OutOrStdout(), format, report)
}

func writeReport(w io.Writer, format string, report *analysis.Report) error {
	switch format {
	case constants.OutputFormatCSV:
		return output.CsvFormat(w, report)
	case constants.OutputFormatYAML:
		return output.YAMLFormat(w, report)
	default:
		output.PrettyFormat(w, report)
		return nil
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig(serverConfigLocation)
	if err != nil {
		return err
	}
	if listenAddress != "" {
		cfg.Address = listenAddress
	}
	if maxUploadSize != "" {
		size, err := server.ParseSize(maxUploadSize)
		if err != nil {
			return err
		}
		cfg.SetUploadSizeBytes(size)
	}

	logger, err := initializeLogger(cfg.Logging, logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signalContext()
	defer stop()

	return server.Serve(ctx, logger, cfg, version)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
