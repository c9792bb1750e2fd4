// Package cmd implements the corpus-prep command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"

	"github.com/book-expert/corpus-prep/internal/config"
)

const bootstrapLogFile = "corpus-prep-bootstrap.log"

var rootCmd = &cobra.Command{
	Use:   "corpus-prep",
	Short: "Prepare a raw speech corpus for TTS training",
	Long: `corpus-prep runs the staged corpus preparation pipeline:

  1. load      decode raw corpus shards into WAV files plus a metadata table
  2. audit     compute corpus statistics from the raw metadata
  3. clean     trim, normalize and filter audio into the processed store
  4. train     invoke the external training collaborator
  5. evaluate  measure synthesis latency over a fixed sentence set

Stages run in order and the run halts on the first failure.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig bootstraps a temporary logger, loads the project configuration
// and switches to the configured log directory.
func loadConfig() (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := logger.New(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bootstrap logger: %w", err)
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logsDir := cfg.Paths.BaseLogsDir
	if logsDir == "" {
		logsDir = os.TempDir()
	}

	finalLog, err := logger.New(logsDir, "corpus-prep.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, fmt.Errorf("failed to create final logger: %w", err)
	}

	return cfg, finalLog, nil
}
