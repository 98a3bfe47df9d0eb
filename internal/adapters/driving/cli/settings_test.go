package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestQualifyModel(t *testing.T) {
	assert.Equal(t, "", qualifyModel(domain.AIProviderOpenAI, ""))
	assert.Equal(t, "openai/gpt-5.2", qualifyModel(domain.AIProviderOpenAI, "gpt-5.2"))
	assert.Equal(t, "ollama/qwen2.5", qualifyModel(domain.AIProviderOllama, "ollama/qwen2.5"))
}

func TestSettingsCmd_Show(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.settings.LLM.APIKey = "AIza-1234567890"
	ts.settings.settings.GitHub.Token = "ghp_abcdefghijkl"

	stdout, _, err := execute(t, nil, "settings", "show")

	require.NoError(t, err)
	assert.Contains(t, stdout, "[LLM]")
	assert.Contains(t, stdout, "Model: gemini/gemini-3.1-pro")
	assert.Contains(t, stdout, "API Key: AIza...7890")
	assert.Contains(t, stdout, "[Pipeline]")
	assert.Contains(t, stdout, "Directory: projects")
	assert.Contains(t, stdout, "Token: ghp_...ijkl")
	assert.Contains(t, stdout, "Configuration is valid.")
}

func TestSettingsCmd_ShowWarnsOnInvalidConfig(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.validateErr = domain.ErrLLMUnavailable

	stdout, _, err := execute(t, nil, "settings")

	require.NoError(t, err)
	assert.Contains(t, stdout, "API Key: (not set)")
	assert.Contains(t, stdout, "Warning:")
	assert.Contains(t, stdout, "agentsmd settings wizard")
}

func TestSettingsCmd_Variant(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	stdout, _, err := execute(t, strings.NewReader("2\n"), "settings", "variant")

	require.NoError(t, err)
	assert.Equal(t, domain.SchemaStrict, ts.settings.setVariant)
	assert.Contains(t, stdout, "Schema variant set to")
}

func TestSettingsCmd_VariantInvalidSelection(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, _, err := execute(t, strings.NewReader("9\n"), "settings", "variant")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid selection")
}

func TestSettingsCmd_LLM(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	// Provider 2 (Anthropic), bare model name, key typed on stdin.
	stdout, _, err := execute(t, strings.NewReader("2\nclaude-opus-4.6\nsk-ant-key\n"), "settings", "llm")

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, ts.settings.setProvider)
	assert.Equal(t, "anthropic/claude-opus-4.6", ts.settings.setModel)
	assert.Equal(t, "sk-ant-key", ts.settings.setAPIKey)
	assert.Contains(t, stdout, "Validating configuration... OK")
}

func TestSettingsCmd_LLMValidationFails(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.settings.llmErr = errors.New("401 unauthorized")

	stdout, _, err := execute(t, strings.NewReader("\n\n\n"), "settings", "llm")

	require.Error(t, err)
	assert.Contains(t, stdout, "FAILED: 401 unauthorized")
	assert.Equal(t, domain.AIProviderGemini, ts.settings.setProvider)
	assert.Equal(t, "gemini/gemini-3.1-pro", ts.settings.setModel)
}
