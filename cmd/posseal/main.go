package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thrylos-labs/posseal/config"
	"github.com/thrylos-labs/posseal/node"
	"github.com/thrylos-labs/posseal/utils"
	"go.uber.org/zap"
)

type GlobalFlags struct {
	ConfigPath string
	EnvPath    string
	Strategy   string
	LogLevel   string
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "posseal",
	Short: "Proof-of-stake validator selection and block sealing",
	Long: `posseal seals blocks on a small ledger by picking a validator with one of
three strategies: stake-weighted random, coin-age maximizing or hybrid.

Examples:
  posseal bench --config posseal.json
  posseal serve --strategy hybrid
  posseal seal --count 10`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "JSON config file (defaults to the built-in demo setup)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.EnvPath, "env", "", ".env file with POSSEAL_* overrides (default .env.dev, or .env.prod when ENV=production)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Strategy, "strategy", "", "selection strategy: random|age|hybrid")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sealCmd)
}

// loadConfig applies flags on top of the file and environment.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := node.LoadConfig(globalFlags.ConfigPath, globalFlags.EnvPath)
	if err != nil {
		return nil, nil, err
	}
	if globalFlags.Strategy != "" {
		cfg.Strategy = globalFlags.Strategy
	}
	if globalFlags.LogLevel != "" {
		cfg.LogLevel = globalFlags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
