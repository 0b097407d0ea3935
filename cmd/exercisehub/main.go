// Command exercisehub serves the exercise reference-sheet catalog and its
// admin API, and carries the maintenance commands around it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"exercisehub/pkg/utils"
)

const appName = "exercisehub"

var (
	configPath string
	verbose    bool
	logger     *zap.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Exercise reference-sheet catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
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

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		serveCmd(),
		indexCmd(),
		exportCmd(),
		hashPasswordCmd(),
		tokenCmd(),
	)
	return cmd
}

func loadConfig() (utils.Config, error) {
	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		return utils.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
