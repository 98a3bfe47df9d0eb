// Package ai provides factory functions for creating LLM service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	anthropicllm "github.com/custodia-labs/agentsmd/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/agentsmd/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/agentsmd/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/agentsmd/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/agentsmd/internal/adapters/driven/llm/throttle"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 10 * time.Second

// InitResult holds the reasoning services of one run.
type InitResult struct {
	// LLMService serves synthesis, extraction and lessons.
	LLMService driven.LLMService

	// ExplorationService serves analyzer iterations. Nil when exploration
	// runs on the primary model.
	ExplorationService driven.LLMService
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.ExplorationService != nil {
		r.ExplorationService.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init creates the primary and exploration services for settings.
// Both share the provider, key and request throttle.
func Init(settings *domain.LLMSettings) (*InitResult, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: no provider configured. Set an API key or run 'agentsmd settings'",
			domain.ErrLLMUnavailable)
	}

	primary, err := createLLMService(settings, settings.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	result := &InitResult{LLMService: primary}
	if explore := settings.ExplorationModel(); explore != settings.Model {
		svc, err := createLLMService(settings, explore)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("%w: exploration model: %w", domain.ErrLLMUnavailable, err)
		}
		result.ExplorationService = svc
	}

	// One limiter spans both models since the quota is per key.
	limiter := throttle.NewLimiter(settings.RequestsPerMinute)
	result.LLMService = limiter.Wrap(result.LLMService)
	result.ExplorationService = limiter.Wrap(result.ExplorationService)

	return result, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'agentsmd settings' to fix",
			domain.ErrLLMUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'agentsmd settings' to fix",
			domain.ErrLLMUnavailable, err)
	}

	return svc, nil
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateLLMService creates the appropriate LLM service for the primary model.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}
	return createLLMService(settings, settings.Model)
}

func createLLMService(settings *domain.LLMSettings, model string) (driven.LLMService, error) {
	switch settings.Provider {
	case domain.AIProviderGemini:
		return geminillm.NewLLMService(geminillm.Config{
			APIKey:   settings.APIKey,
			Endpoint: settings.BaseURL,
			Model:    model,
		})

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   model,
		})

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   model,
		})

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}
