// fwbench benchmarks a set of web-framework implementations of the
// same application and produces a cross-framework comparison report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"fwbench/internal/config"
	"fwbench/internal/logging"
)

var (
	// Global flags
	cfgPath    string
	resultsDir string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fwbench",
	Short: "fwbench - web framework benchmark orchestrator",
	Long: `fwbench drives a full benchmark pipeline over a set of framework
subjects serving the same application: browser audits, bundle analysis,
and runtime profiling, consolidated into per-subject scores and a
cross-subject comparison report.

Subjects are declared in a registry file (subjects.yaml) and must be
reachable through a running dev server before a run starts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if resultsDir != "" {
			cfg.ResultsDir = resultsDir
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Level); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		if logging.Enabled() {
			logger.Debug("file logging active", zap.String("dir", cfg.Logging.Dir))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "fwbench.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&resultsDir, "results-dir", "", "override the results directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
