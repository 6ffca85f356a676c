// Package commands defines all Cobra CLI commands for the acrecall binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/acrecall/internal/audit"
	"github.com/54b3r/acrecall/internal/config"
	"github.com/54b3r/acrecall/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "acrecall",
		Short: "Recall acceptance criteria to generate, trace, and triage UI tests",
		Long: `acrecall indexes acceptance criteria from requirements documents into an
embedding store and uses the most similar records to ground test generation,
failure analysis, wait estimation, and test-to-requirement traceability.

Providers are selected with environment variables (GENERATION_PROVIDER,
EMBEDDING_PROVIDER, STORE_PROVIDER, ...) or a YAML config file
(~/.acrecall/config.yaml). Environment variables always win.
See 'acrecall --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// YAML values are applied only where the env var is unset.
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Rebuild the logger: the file may have set LOG_LEVEL or LOG_FORMAT.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.acrecall/config.yaml)")

	root.AddCommand(
		NewIndexCmd(),
		NewAddCmd(),
		NewSearchCmd(),
		NewGenerateCmd(),
		NewAnalyzeCmd(),
		NewWaitCmd(),
		NewTraceCmd(),
		NewStatsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
