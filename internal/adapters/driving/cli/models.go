package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported models",
	Long: `List every cataloged model grouped by provider.

Pass a provider name or a "provider/model" entry to 'agentsmd generate --model'.
Ollama accepts any locally pulled model as "ollama/<name>".`,
	Args: cobra.NoArgs,
	Run:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) {
	cmd.Println("Supported models:")
	var current domain.AIProvider
	for _, m := range domain.ModelCatalog() {
		if m.Provider != current {
			current = m.Provider
			cmd.Println()
			cmd.Printf("  %s\n", strings.ToUpper(string(current)))
		}
		tag := ""
		switch m.Name {
		case domain.DefaultModel(m.Provider):
			tag = "  (default)"
		case domain.DefaultMiniModel(m.Provider):
			tag = "  (default mini)"
		}
		cmd.Printf("    %s%s\n", m.Name, tag)
	}
}
