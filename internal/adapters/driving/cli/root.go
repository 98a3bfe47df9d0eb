// Package cli implements the agentsmd command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services used by the commands. Set by SetServices before Execute.
var (
	settingsService   driving.SettingsService
	runHistoryService driving.RunHistoryService
	generatorFactory  driving.GeneratorFactory
)

// Services aggregates the driving ports the commands depend on.
type Services struct {
	Settings   driving.SettingsService
	Runs       driving.RunHistoryService
	Generators driving.GeneratorFactory
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	settingsService = s.Settings
	runHistoryService = s.Runs
	generatorFactory = s.Generators
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentsmd",
	Short: "Generate AGENTS.md files for code repositories",
	Long: `agentsmd explores a repository with a language model and writes an
AGENTS.md describing its architecture, conventions and constraints for
AI coding assistants.

Run 'agentsmd generate' in a repository to get started.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
