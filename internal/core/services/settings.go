package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyLLMProvider = "llm.provider"
	keyLLMModel    = "llm.model"
	keyLLMMini     = "llm.mini_model"
	keyLLMBaseURL  = "llm.base_url"
	keyLLMAPIKey   = "llm.api_key"
	keyLLMRPM      = "llm.requests_per_minute"

	keyVariant        = "pipeline.variant"
	keyBudget         = "pipeline.max_exploration_budget"
	keyMaxIterations  = "pipeline.max_iterations"
	keyMaxChunkSize   = "pipeline.max_chunk_size"
	keyMaxWallClock   = "pipeline.max_wall_clock"
	keyCallTimeout    = "pipeline.per_call_timeout"
	keyRetryLimit     = "pipeline.retry_limit"
	keyConcurrency    = "pipeline.concurrency_limit"
	keySynthesisBatch = "pipeline.synthesis_batch_size"
	keySummaryWindow  = "pipeline.summary_window"
	keyMaxFollowUps   = "pipeline.max_follow_ups"

	keyOutputDir   = "output.dir"
	keyGitHubToken = "github.token"
)

// Environment variables consulted when the config file is silent.
const (
	EnvModel       = "AGENTSMD_MODEL"
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvOllamaHost  = "OLLAMA_HOST"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// WithEnv replaces the environment lookup. Used by tests.
func (s *SettingsService) WithEnv(getenv func(string) string) *SettingsService {
	s.getenv = getenv
	return s
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	llm, err := s.getLLM(defaults.LLM)
	if err != nil {
		return nil, err
	}

	pipeline, err := s.getPipeline(defaults.Pipeline)
	if err != nil {
		return nil, err
	}

	token := s.configStore.GetString(keyGitHubToken)
	if token == "" {
		token = s.getenv(EnvGitHubToken)
	}

	return &domain.AppSettings{
		LLM:      llm,
		Pipeline: pipeline,
		Output:   domain.OutputSettings{Dir: s.getString(keyOutputDir, defaults.Output.Dir)},
		GitHub:   domain.GitHubSettings{Token: token},
	}, nil
}

func (s *SettingsService) getLLM(defaults domain.LLMSettings) (domain.LLMSettings, error) {
	llm := defaults

	// The environment model only applies when the file names no provider.
	if s.configStore.GetString(keyLLMProvider) == "" {
		if arg := s.getenv(EnvModel); arg != "" {
			choice, err := domain.ResolveModel(arg)
			if err != nil {
				return llm, fmt.Errorf("%s: %w", EnvModel, err)
			}
			llm.Provider = choice.Provider
			llm.Model = choice.Model
			llm.MiniModel = choice.MiniModel
		}
	} else {
		llm.Provider = s.getProvider(keyLLMProvider, defaults.Provider)
		if llm.Provider != defaults.Provider {
			llm.Model = domain.DefaultModel(llm.Provider)
			llm.MiniModel = domain.DefaultMiniModel(llm.Provider)
		}
	}

	llm.Model = s.getString(keyLLMModel, llm.Model)
	llm.MiniModel = s.getString(keyLLMMini, llm.MiniModel)
	llm.BaseURL = s.configStore.GetString(keyLLMBaseURL) // No default - empty is valid for cloud providers
	llm.APIKey = s.configStore.GetString(keyLLMAPIKey)
	llm.RequestsPerMinute = s.configStore.GetInt(keyLLMRPM)

	s.fillFromEnv(&llm)
	return llm, nil
}

// fillFromEnv resolves an absent API key and, for local providers, an
// absent base URL from the environment.
func (s *SettingsService) fillFromEnv(llm *domain.LLMSettings) {
	if llm.APIKey == "" {
		for _, name := range llm.Provider.APIKeyEnvVars() {
			if v := s.getenv(name); v != "" {
				llm.APIKey = v
				break
			}
		}
	}
	if llm.Provider.IsLocal() && llm.BaseURL == "" {
		llm.BaseURL = s.getenv(EnvOllamaHost)
		if llm.BaseURL == "" {
			llm.BaseURL = defaultOllamaURL
		}
	}
}

// ApplyModel overrides the model of settings for one run without
// persisting it. Credentials of a different provider are dropped and
// re-resolved from the environment.
func (s *SettingsService) ApplyModel(settings *domain.AppSettings, arg string) error {
	choice, err := domain.ResolveModel(arg)
	if err != nil {
		return err
	}
	if choice.Provider != settings.LLM.Provider {
		settings.LLM.APIKey = ""
		settings.LLM.BaseURL = ""
	}
	settings.LLM.Provider = choice.Provider
	settings.LLM.Model = choice.Model
	settings.LLM.MiniModel = choice.MiniModel
	s.fillFromEnv(&settings.LLM)
	return nil
}

func (s *SettingsService) getPipeline(defaults domain.PipelineSettings) (domain.PipelineSettings, error) {
	p := domain.PipelineSettings{
		Variant:              s.getVariant(defaults.Variant),
		MaxExplorationBudget: s.getInt(keyBudget, defaults.MaxExplorationBudget),
		MaxIterations:        s.getInt(keyMaxIterations, defaults.MaxIterations),
		MaxChunkSize:         s.getInt(keyMaxChunkSize, defaults.MaxChunkSize),
		RetryLimit:           s.getInt(keyRetryLimit, defaults.RetryLimit),
		ConcurrencyLimit:     s.getInt(keyConcurrency, defaults.ConcurrencyLimit),
		SynthesisBatchSize:   s.getInt(keySynthesisBatch, defaults.SynthesisBatchSize),
		SummaryWindow:        s.getInt(keySummaryWindow, defaults.SummaryWindow),
		MaxFollowUps:         s.getInt(keyMaxFollowUps, defaults.MaxFollowUps),
	}

	var err error
	if p.MaxWallClock, err = s.getDuration(keyMaxWallClock, defaults.MaxWallClock); err != nil {
		return p, err
	}
	if p.PerCallTimeout, err = s.getDuration(keyCallTimeout, defaults.PerCallTimeout); err != nil {
		return p, err
	}
	return p, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMMini, settings.LLM.MiniModel},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVariant, settings.Pipeline.Variant.String()},
		{keyBudget, settings.Pipeline.MaxExplorationBudget},
		{keyMaxIterations, settings.Pipeline.MaxIterations},
		{keyMaxChunkSize, settings.Pipeline.MaxChunkSize},
		{keyMaxWallClock, settings.Pipeline.MaxWallClock.String()},
		{keyCallTimeout, settings.Pipeline.PerCallTimeout.String()},
		{keyRetryLimit, settings.Pipeline.RetryLimit},
		{keyConcurrency, settings.Pipeline.ConcurrencyLimit},
		{keySynthesisBatch, settings.Pipeline.SynthesisBatchSize},
		{keySummaryWindow, settings.Pipeline.SummaryWindow},
		{keyMaxFollowUps, settings.Pipeline.MaxFollowUps},
		{keyOutputDir, settings.Output.Dir},
	}
	if settings.LLM.RequestsPerMinute > 0 {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMRPM, settings.LLM.RequestsPerMinute})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set, so keys from the environment
	// never leak into the file by accident of a round trip.
	if settings.LLM.APIKey != "" && !s.fromEnv(settings.LLM.APIKey, settings.LLM.Provider.APIKeyEnvVars()...) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}
	if settings.GitHub.Token != "" && !s.fromEnv(settings.GitHub.Token, EnvGitHubToken) {
		if err := s.configStore.Set(keyGitHubToken, settings.GitHub.Token); err != nil {
			return fmt.Errorf("save github token: %w", err)
		}
	}

	return s.configStore.Save()
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	// A new provider needs a key, either given or in the environment.
	if settings.LLM.Provider != provider && apiKey == "" {
		if provider.RequiresAPIKey() && !s.hasEnvKey(provider) {
			return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
		}
		settings.LLM.APIKey = ""
		if err := s.configStore.Set(keyLLMAPIKey, ""); err != nil {
			return fmt.Errorf("clear llm api_key: %w", err)
		}
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		choice, err := domain.ResolveModel(model)
		if err != nil {
			return err
		}
		if choice.Provider != provider {
			return fmt.Errorf("%w: model %s belongs to %s, not %s",
				domain.ErrInvalidInput, model, choice.Provider, provider)
		}
		settings.LLM.Model = choice.Model
		settings.LLM.MiniModel = choice.MiniModel
	} else {
		settings.LLM.Model = domain.DefaultModel(provider)
		settings.LLM.MiniModel = domain.DefaultMiniModel(provider)
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.LLM.BaseURL = ""
	}

	if apiKey != "" {
		settings.LLM.APIKey = apiKey
	}

	return s.Save(settings)
}

// SetSchemaVariant updates the default schema variant.
func (s *SettingsService) SetSchemaVariant(variant domain.SchemaVariant) error {
	if !variant.IsValid() {
		return fmt.Errorf("%w: invalid schema variant: %s", domain.ErrInvalidInput, variant)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Pipeline.Variant = variant
	return s.Save(settings)
}

// Validate checks if current settings are usable for a run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Pipeline.Validate(); err != nil {
		return err
	}

	if !settings.LLM.IsConfigured() {
		vars := strings.Join(settings.LLM.Provider.APIKeyEnvVars(), " or ")
		return fmt.Errorf("%w: LLM provider %s is not configured (set %s or llm.api_key)",
			domain.ErrLLMUnavailable, settings.LLM.Provider, vars)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := s.configStore.GetString(key)
	if val == "" {
		if secs := s.configStore.GetInt(key); secs > 0 {
			return time.Duration(secs) * time.Second, nil
		}
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	return d, nil
}

func (s *SettingsService) getVariant(defaultVal domain.SchemaVariant) domain.SchemaVariant {
	val := s.configStore.GetString(keyVariant)
	if val == "" {
		return defaultVal
	}
	variant := domain.SchemaVariant(val)
	if !variant.IsValid() {
		return defaultVal
	}
	return variant
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) hasEnvKey(provider domain.AIProvider) bool {
	for _, name := range provider.APIKeyEnvVars() {
		if s.getenv(name) != "" {
			return true
		}
	}
	return false
}

func (s *SettingsService) fromEnv(value string, names ...string) bool {
	for _, name := range names {
		if s.getenv(name) == value {
			return true
		}
	}
	return false
}
