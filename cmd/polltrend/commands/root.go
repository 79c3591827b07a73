package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/logger"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "polltrend",
	Short: "Polling trend engine",
	Long: `polltrend CLI

Scrapes a table of opinion polls, cleans it, and computes weighted rolling
trend estimates per candidate with outlier flags.

Usage:
  go run ./cmd/polltrend [command]

Examples:
  go run ./cmd/polltrend scrape --results polls.csv
  go run ./cmd/polltrend trends --out data --window 14D
  go run ./cmd/polltrend serve --refresh
  go run ./cmd/polltrend schedule --once`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment (development|staging|production|test), overrides ENV")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the environment config and applies the global flags
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("env") {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, logger.New(cfg), nil
}
