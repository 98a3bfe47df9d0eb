package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ModelTier distinguishes primary models from cheaper exploration models.
type ModelTier string

// Model tiers.
const (
	TierPrimary ModelTier = "primary"
	TierMini    ModelTier = "mini"
)

// ModelInfo describes one catalog entry.
type ModelInfo struct {
	// Name is the qualified "provider/model" name.
	Name      string
	Provider  AIProvider
	Tier      ModelTier
	MaxTokens int
}

// ModelID returns the provider-local model identifier (the part after "/").
func (m ModelInfo) ModelID() string {
	return BareModelName(m.Name)
}

var modelCatalog = []ModelInfo{
	{"gemini/gemini-3.1-pro", AIProviderGemini, TierPrimary, 2000000},
	{"gemini/gemini-3.1-flash", AIProviderGemini, TierMini, 1000000},
	{"gemini/gemini-3-deep-think", AIProviderGemini, TierPrimary, 1000000},
	{"gemini/gemini-2.5-pro", AIProviderGemini, TierPrimary, 1000000},
	{"gemini/gemini-2.5-flash", AIProviderGemini, TierMini, 25000},
	{"anthropic/claude-opus-4.6", AIProviderAnthropic, TierPrimary, 1000000},
	{"anthropic/claude-sonnet-4.6", AIProviderAnthropic, TierPrimary, 1000000},
	{"anthropic/claude-sonnet-5", AIProviderAnthropic, TierPrimary, 1000000},
	{"anthropic/claude-haiku-3-20250519", AIProviderAnthropic, TierMini, 16000},
	{"openai/gpt-5.2", AIProviderOpenAI, TierPrimary, 128000},
	{"openai/gpt-5.2-instant", AIProviderOpenAI, TierMini, 128000},
	{"openai/gpt-5.3-codex", AIProviderOpenAI, TierPrimary, 128000},
	{"openai/o4-mini-deep-research", AIProviderOpenAI, TierMini, 128000},
	{"ollama/llama3.2", AIProviderOllama, TierPrimary, 128000},
}

var defaultModels = map[AIProvider]string{
	AIProviderGemini:    "gemini/gemini-3.1-pro",
	AIProviderAnthropic: "anthropic/claude-sonnet-4.6",
	AIProviderOpenAI:    "openai/gpt-5.2",
	AIProviderOllama:    "ollama/llama3.2",
}

// Exploration runs on the primary model unless configured otherwise.
var defaultMiniModels = map[AIProvider]string{
	AIProviderGemini:    "gemini/gemini-3.1-pro",
	AIProviderAnthropic: "anthropic/claude-sonnet-4.6",
	AIProviderOpenAI:    "openai/gpt-5.2",
	AIProviderOllama:    "ollama/llama3.2",
}

// ModelCatalog returns every cataloged model in declaration order.
func ModelCatalog() []ModelInfo {
	out := make([]ModelInfo, len(modelCatalog))
	copy(out, modelCatalog)
	return out
}

// LookupModel returns the catalog entry for a qualified name.
func LookupModel(name string) (ModelInfo, bool) {
	for _, m := range modelCatalog {
		if m.Name == name {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// DefaultModel returns the qualified default model of a provider.
func DefaultModel(p AIProvider) string {
	return defaultModels[p]
}

// DefaultMiniModel returns the qualified default exploration model of a provider.
func DefaultMiniModel(p AIProvider) string {
	return defaultMiniModels[p]
}

// BareModelName strips a "provider/" prefix.
func BareModelName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ModelChoice is a resolved model selection.
type ModelChoice struct {
	Provider  AIProvider
	Model     string
	MiniModel string
}

// ResolveModel resolves a --model argument. Accepted forms are a bare
// provider name ("gemini"), an exact catalog entry ("openai/gpt-5.2"),
// or any "ollama/<model>" since local models are not cataloged.
// An empty argument selects the Gemini default.
func ResolveModel(arg string) (ModelChoice, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		arg = string(AIProviderGemini)
	}

	if p := AIProvider(arg); p.IsValid() {
		return ModelChoice{Provider: p, Model: defaultModels[p], MiniModel: defaultMiniModels[p]}, nil
	}
	if m, ok := LookupModel(arg); ok {
		return ModelChoice{Provider: m.Provider, Model: m.Name, MiniModel: defaultMiniModels[m.Provider]}, nil
	}
	if strings.HasPrefix(arg, string(AIProviderOllama)+"/") && len(arg) > len(AIProviderOllama)+1 {
		return ModelChoice{Provider: AIProviderOllama, Model: arg, MiniModel: arg}, nil
	}

	names := make([]string, 0, len(modelCatalog))
	for _, m := range modelCatalog {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return ModelChoice{}, fmt.Errorf("%w: unknown model %q, supported: %s",
		ErrInvalidInput, arg, strings.Join(names, ", "))
}
