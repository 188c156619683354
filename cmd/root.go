package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newhook/plclog/internal/config"
	"github.com/newhook/plclog/internal/logging"
	plcsignal "github.com/newhook/plclog/internal/signal"
)

var (
	// rootCtx holds the signal-cancellable context for the application
	rootCtx    context.Context
	rootCancel context.CancelFunc

	// appConfig is loaded once in PersistentPreRunE.
	appConfig *config.Config

	flagConfig   string
	flagLogFile  string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "plclog",
	Short: "Parse, classify and explain PLC build logs",
	Long: `plclog turns PLC build logs into structured errors, classifies them by
severity, pipeline stage and fix complexity, suggests fixes, and measures
classification quality against synthetic logs with known answers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Create a cancellable context with signal handling
		rootCtx, rootCancel = plcsignal.WithSignalCancel(context.Background())

		path := flagConfig
		if path == "" {
			path = config.Find()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if flagLogLevel != "" {
			cfg.Log.Level = flagLogLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = flagLogFile
		}
		appConfig = cfg

		if err := logging.Init(cfg.Log.File, logging.ParseLevel(cfg.Log.GetLevel())); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logging.Debug("configuration loaded", "path", path, "mode", cfg.Service.GetMode())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
		// Clean up the signal handler
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// GetContext returns the root context that is cancelled on SIGINT/SIGTERM.
// This should be used by all subcommands instead of context.Background().
func GetContext() context.Context {
	if rootCtx == nil {
		return context.Background()
	}
	return rootCtx
}

// getConfig returns the loaded configuration, or defaults before
// PersistentPreRunE has run.
func getConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: ./plclog.toml or ~/.config/plclog/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", `log file path, "-" for stderr`)
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
