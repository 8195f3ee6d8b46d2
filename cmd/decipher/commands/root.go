// Package commands defines all Cobra CLI commands for the decipher binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/audit"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/config"
	"github.com/sweet-cross/decipher-energy-scenarios/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "decipher",
		Short: "Decipher — ingestion and retrieval over Swiss energy scenario reports",
		Long: `Decipher indexes energy scenario publications (PDF reports and the CSV
datasets extracted from them) into vector collections and answers
cross-modality retrieval queries with source citations.

Backends are selected via environment variables or a YAML config file
(~/.decipher/config.yaml). See 'decipher --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Local .env files are a convenience; absence is not an error.
			_ = godotenv.Load()

			log := logging.New()
			slog.SetDefault(log)

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.decipher/config.yaml)")

	root.AddCommand(
		NewBuildCmd(),
		NewSearchCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
