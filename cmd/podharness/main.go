// Package main implements the podharness CLI for running supervised
// LLM task loops and serving the status API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/podharness/internal/config"
	"github.com/fyrsmithlabs/podharness/internal/logging"
	"go.uber.org/zap"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "podharness",
	Short: "Supervised LLM task loops over pod directories",
	Long: `podharness coordinates a supervisor and an LLM worker through
atomic JSON documents in per-pod directories. The worker produces a
result for the task instructions; the supervisor evaluates it and
feeds gaps back until the result passes or attempts run out.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads configuration and builds the logger shared by all
// commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "podharness"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
