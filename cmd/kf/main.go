package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/steveyegge/kernelfinder/internal/config"
	"github.com/steveyegge/kernelfinder/internal/discovery"
	"github.com/steveyegge/kernelfinder/internal/finder"
)

var (
	configPath  string
	projectRoot string
	verbose     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kf",
	Short: "kf - kernel finder",
	Long: `kf discovers Jupyter kernels from local kernelspec directories, Jupyter
servers and extension-contributed files, and lists them as one view.

Finders are configured in .kf/finders.yaml. Without that file, kf scans the
standard Jupyter kernelspec locations.

Registry behavior is tuned through environment variables:
  KF_FAILURE_POLICY         fail_fast | isolate
  KF_LIST_POLICY            serialize | concurrent
  KF_READY_TIMEOUT_SECONDS  readiness bound, 0 for none
  KF_HISTORY_ENABLED        record registry events in .kf/history.db
                            (default: only "kf watch" records)
  KF_HISTORY_RETENTION_HOURS  prune recorded events older than this
  KF_HISTORY_DB             history database path (":memory:" allowed)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Finders file (default <project>/.kf/finders.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "project", "p", ".", "Project root for relative paths")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadRegistryConfig reads the registry config from the environment. When
// KF_HISTORY_ENABLED is unset, recordHistory decides whether the command
// writes to the history database: one-shot commands leave no .kf/history.db
// behind, long-running ones record by default.
func loadRegistryConfig(recordHistory bool) (config.RegistryConfig, error) {
	regCfg, err := config.RegistryConfigFromEnv()
	if err != nil {
		return config.RegistryConfig{}, err
	}
	if _, set := os.LookupEnv("KF_HISTORY_ENABLED"); !set {
		regCfg.HistoryEnabled = recordHistory
	}
	return regCfg, nil
}

// failurePolicyHint suggests the isolate policy when a listing failed
// because one finder is broken under fail_fast.
func failurePolicyHint(err error, policy string) string {
	var ferr *finder.FinderError
	if finder.FailurePolicy(policy) != finder.FailFast || !errors.As(err, &ferr) {
		return ""
	}
	return fmt.Sprintf("finder %s is failing; set KF_FAILURE_POLICY=isolate to list the remaining finders", ferr.FinderID)
}

// openSession builds a discovery session from the flags and regCfg.
func openSession(ctx context.Context, regCfg config.RegistryConfig) (*discovery.Session, error) {
	return discovery.NewSession(ctx, discovery.Options{
		ProjectRoot: projectRoot,
		ConfigPath:  configPath,
		Registry:    regCfg,
		Logger:      logger,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
