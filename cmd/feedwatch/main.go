// Command feedwatch watches Broadcastify listener counts and raises a
// notification when a feed's audience spikes.
//
// Usage:
//
//	feedwatch                      run the monitor (same as "feedwatch run")
//	feedwatch run --config feedwatch.yaml
//	feedwatch fetch --state 12     fetch the listings once and print them
//	feedwatch config               print the effective configuration as JSON
//	feedwatch version
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/feedwatch/internal/config"
	"github.com/HerbHall/feedwatch/internal/version"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "feedwatch",
		Short:        "Broadcastify listener spike monitor",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	root.AddCommand(runCmd(&configPath))
	root.AddCommand(fetchCmd(&configPath))
	root.AddCommand(configCmd(&configPath))
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

// setup loads the configuration and builds the logger. Dropped config
// entries are logged as warnings; they never fail startup.
func setup(configPath string) (*config.Config, *zap.Logger, error) {
	v, err := config.LoadViper(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	cfg, err := config.Load(v)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	if f := v.ConfigFileUsed(); f != "" {
		logger.Debug("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Debug("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}
	for _, w := range cfg.Warnings {
		logger.Warn("ignored configuration entry",
			zap.String("component", "config"),
			zap.Error(w),
		)
	}

	return cfg, logger, nil
}
