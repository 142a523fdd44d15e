package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/todmy/tarmac/internal/config"
	"github.com/todmy/tarmac/internal/logging"
)

const version = "v0.1-dev"

// app carries state shared by every subcommand
type app struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tarmac",
		Short: "Explainable git diff for your ML models",
		Long: `Tarmac compares the predictions of two models and explains where they
differ with human-readable rules learned by a small decision tree.

Use "tarmac diff" for a one-off comparison and "tarmac serve" to run the HTTP API.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			logger, err := logging.New(cfg.Logging, a.verbose)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.SetVersionTemplate("Tarmac {{.Version}}\n")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(newDiffCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newHashKeyCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
