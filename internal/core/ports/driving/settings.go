package driving

import "github.com/custodia-labs/agentsmd/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, with defaults for unset keys
	// and API keys resolved from the environment when absent from the file.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetLLMProvider configures the LLM provider.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetSchemaVariant updates the default schema variant.
	SetSchemaVariant(variant domain.SchemaVariant) error

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ApplyModel overrides the model of settings for a single run.
	// arg is a provider name or a "provider/model" catalog entry.
	ApplyModel(settings *domain.AppSettings, arg string) error

	// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
	ValidateLLMConfig() error
}
