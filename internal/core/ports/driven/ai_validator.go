package driven

import "github.com/custodia-labs/agentsmd/internal/core/domain"

// AIConfigValidator validates LLM provider configurations by testing
// connectivity to the underlying service.
type AIConfigValidator interface {
	// ValidateLLM pings the configured provider.
	// Returns domain.ErrLLMUnavailable if the settings are incomplete.
	ValidateLLM(config *domain.LLMSettings) error
}
