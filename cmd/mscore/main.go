package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"forensic_audit/pkg/core/app"
	"forensic_audit/pkg/core/config"
	"forensic_audit/pkg/core/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	settings *config.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mscore",
	Short: "Beneish M-Score forensic screening",
	Long: `mscore computes the Beneish M-Score for each period of a company's
financial statements.

Tabular files (.json, .csv, .xlsx) are scored directly. Documents
(.pdf, .html, .md, .txt) first have their line items extracted by the
configured language model provider.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := settings.Log.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, settings.Log.Development)
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
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(scoreCmd, extractCmd, benfordCmd, cacheCmd, providersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), settings, logger)
}
