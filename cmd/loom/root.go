package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loom-ai/loom/internal/config"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagHomeDir string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Loom - multi-stage AI generation pipeline engine",
	Long: `Loom runs declarative multi-stage generation pipelines: each stage
produces one artifact through a capability provider, validated output is
compressed into digests for downstream stages, and flagged artifacts pass
through an iterative quality refinement loop.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig resolves the config path from flags and environment and loads
// it, falling back to defaults when no file exists.
func loadConfig() (*config.Config, error) {
	homeDir := flagHomeDir
	if homeDir == "" {
		homeDir = os.Getenv("LOOM_HOME")
	}
	if homeDir == "" {
		homeDir = config.DefaultHomeDir()
	}

	configFile := flagConfig
	if configFile == "" {
		configFile = config.DefaultConfigPath(homeDir)
	}

	loader := config.NewConfigLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return nil, err
	}

	if flagVerbose {
		cfg.Core.Debug = true
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file (default: $LOOM_HOME/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagHomeDir, "home", "", "Loom home directory (default: ~/.loom)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
