package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies a reasoning-service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderGemini is Google's Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderGemini, AIProviderAnthropic, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderGemini || p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderGemini:
		return "Gemini (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	default:
		return unknownDescription
	}
}

// APIKeyEnvVars returns the environment variables consulted, in order,
// for this provider's API key.
func (p AIProvider) APIKeyEnvVars() []string {
	switch p {
	case AIProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case AIProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	case AIProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	default:
		return nil
	}
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the primary model, used for synthesis and extraction.
	Model string

	// MiniModel serves exploration iterations. Empty means Model.
	MiniModel string

	// BaseURL is the API endpoint override (required for Ollama).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// ExplorationModel returns the model used for exploration iterations.
func (l LLMSettings) ExplorationModel() string {
	if l.MiniModel != "" {
		return l.MiniModel
	}
	return l.Model
}

// PipelineSettings is the configuration value threaded through every stage.
type PipelineSettings struct {
	// Variant selects the section schema.
	Variant SchemaVariant

	// MaxExplorationBudget caps total characters shown to the analyzer.
	MaxExplorationBudget int

	// MaxIterations caps analyzer reasoning calls.
	MaxIterations int

	// MaxChunkSize caps characters per reasoning call.
	MaxChunkSize int

	// MaxWallClock bounds exploration time.
	MaxWallClock time.Duration

	// PerCallTimeout bounds a single reasoning call.
	PerCallTimeout time.Duration

	// RetryLimit is the total number of attempts per reasoning call.
	RetryLimit int

	// ConcurrencyLimit bounds in-flight exploration iterations.
	ConcurrencyLimit int

	// SynthesisBatchSize caps note characters per synthesis call.
	SynthesisBatchSize int

	// SummaryWindow caps the rolling summary passed to each iteration.
	SummaryWindow int

	// MaxFollowUps caps follow-up paths accepted per iteration.
	MaxFollowUps int
}

// Validate checks that every limit is usable.
func (p PipelineSettings) Validate() error {
	if !p.Variant.IsValid() {
		return fmt.Errorf("%w: unknown schema variant %q", ErrInvalidInput, p.Variant)
	}
	checks := []struct {
		name  string
		value int
	}{
		{"max_exploration_budget", p.MaxExplorationBudget},
		{"max_iterations", p.MaxIterations},
		{"max_chunk_size", p.MaxChunkSize},
		{"retry_limit", p.RetryLimit},
		{"concurrency_limit", p.ConcurrencyLimit},
		{"synthesis_batch_size", p.SynthesisBatchSize},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidInput, c.name, c.value)
		}
	}
	if p.SummaryWindow < 0 || p.MaxFollowUps < 0 {
		return fmt.Errorf("%w: summary_window and max_follow_ups must not be negative", ErrInvalidInput)
	}
	if p.PerCallTimeout <= 0 || p.MaxWallClock <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidInput)
	}
	return nil
}

// DefaultPipelineSettings returns the pipeline defaults.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		Variant:              SchemaComprehensive,
		MaxExplorationBudget: 400000,
		MaxIterations:        35,
		MaxChunkSize:         60000,
		MaxWallClock:         20 * time.Minute,
		PerCallTimeout:       3 * time.Minute,
		RetryLimit:           2,
		ConcurrencyLimit:     1,
		SynthesisBatchSize:   80000,
		SummaryWindow:        4000,
		MaxFollowUps:         3,
	}
}

// OutputSettings controls where documents are written.
type OutputSettings struct {
	// Dir is the root output directory. Each repository gets a sub-directory.
	Dir string
}

// GitHubSettings holds GitHub access configuration.
type GitHubSettings struct {
	// Token is a personal access token. Optional for public repositories.
	Token string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Pipeline holds pipeline limits.
	Pipeline PipelineSettings

	// Output holds persistence settings.
	Output OutputSettings

	// GitHub holds GitHub access settings.
	GitHub GitHubSettings
}

// DefaultOutputDir is the default root for generated documents.
const DefaultOutputDir = "projects"

// DefaultAppSettings returns settings with sensible defaults.
// The LLM provider defaults to Gemini with its catalog default models;
// the API key comes from the config file or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			Provider:  AIProviderGemini,
			Model:     DefaultModel(AIProviderGemini),
			MiniModel: DefaultMiniModel(AIProviderGemini),
		},
		Pipeline: DefaultPipelineSettings(),
		Output:   OutputSettings{Dir: DefaultOutputDir},
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderGemini,
		AIProviderAnthropic,
		AIProviderOpenAI,
		AIProviderOllama,
	}
}

// AllSchemaVariants returns all schema variants.
func AllSchemaVariants() []SchemaVariant {
	return []SchemaVariant{SchemaComprehensive, SchemaStrict}
}
