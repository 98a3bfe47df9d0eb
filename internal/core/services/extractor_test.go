package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

var conventions = domain.SynthesizedDocument{Markdown: "# Conventions\n\nUse gofmt.", NotesUsed: 1, Batches: 1}

func strictSettings() domain.PipelineSettings {
	s := testSettings()
	s.Variant = domain.SchemaStrict
	return s
}

func TestSectionExtractor_EmptyDocument(t *testing.T) {
	llm := replying("{}")

	set, degradations, err := NewSectionExtractor(llm, stubPrompts{}, testSettings()).
		Extract(context.Background(), "demo", domain.SynthesizedDocument{})

	require.NoError(t, err)
	assert.Equal(t, domain.SectionKeys(domain.SchemaComprehensive), set.Keys())
	assert.Empty(t, set.NonEmptyKeys())
	require.Len(t, degradations, 1)
	assert.Zero(t, llm.callCount())
}

func TestSectionExtractor_CompleteResponse(t *testing.T) {
	llm := replying(`{
		"code_style": "Use gofmt.",
		"anti_patterns_and_restrictions": ["Never panic", "Never log secrets"],
		"security_and_compliance": "",
		"lessons_learned": "",
		"repo_quirks": {"vendor": "is committed"},
		"execution_commands": "` + "```bash\\nmake test" + `"
	}`)

	set, degradations, err := NewSectionExtractor(llm, stubPrompts{}, strictSettings()).
		Extract(context.Background(), "demo", conventions)

	require.NoError(t, err)
	assert.Empty(t, degradations)
	assert.Equal(t, "Use gofmt.", set.Get("code_style"))
	assert.Equal(t, "- Never panic\n- Never log secrets", set.Get("anti_patterns_and_restrictions"))
	assert.Equal(t, "- **vendor**: is committed", set.Get("repo_quirks"))
	assert.Equal(t, "```bash\nmake test\n```", set.Get("execution_commands"))
	assert.Equal(t, []string{"prompt:extract"}, llm.systemPrompts())
	assert.True(t, llm.opts[0].JSON)

	msg := userMessage(llm.calls[0])
	for _, key := range domain.SectionKeys(domain.SchemaStrict) {
		assert.Contains(t, msg, "- "+key+" (")
	}
	assert.Contains(t, msg, "Use gofmt.")
}

func TestSectionExtractor_SchemaClosure(t *testing.T) {
	llm := replying(`{"sections": {"code_style": "tabs", "made_up_section": "drop me", "repo_quirks": "none"}}`)

	set, degradations, err := NewSectionExtractor(llm, stubPrompts{}, strictSettings()).
		Extract(context.Background(), "demo", conventions)

	require.NoError(t, err)
	assert.Equal(t, domain.SectionKeys(domain.SchemaStrict), set.Keys())
	assert.False(t, set.Has("made_up_section"))
	assert.Equal(t, "tabs", set.Get("code_style"))
	assert.Equal(t, "", set.Get("security_and_compliance"))

	require.Len(t, degradations, 1)
	assert.Equal(t, domain.StageExtract, degradations[0].Stage)
	assert.Contains(t, degradations[0].Message, "anti_patterns_and_restrictions, security_and_compliance, lessons_learned, execution_commands")
}

func TestSectionExtractor_MalformedAfterRetries(t *testing.T) {
	llm := replying("I am unable to produce JSON today.")

	set, degradations, err := NewSectionExtractor(llm, stubPrompts{}, testSettings()).
		Extract(context.Background(), "demo", conventions)

	require.NoError(t, err)
	assert.Equal(t, 2, llm.callCount())
	assert.Equal(t, domain.SectionKeys(domain.SchemaComprehensive), set.Keys())
	assert.Empty(t, set.NonEmptyKeys())
	require.Len(t, degradations, 1)
	assert.Contains(t, degradations[0].Message, domain.ErrSchemaViolation.Error())
}

func TestSectionExtractor_RecoversOnRetry(t *testing.T) {
	replies := []string{"not json", `{"code_style": "ok"}`}
	llm := newStubLLM(func(context.Context, []driven.ChatMessage) (string, error) {
		r := replies[0]
		replies = replies[1:]
		return r, nil
	})

	set, _, err := NewSectionExtractor(llm, stubPrompts{}, strictSettings()).
		Extract(context.Background(), "demo", conventions)

	require.NoError(t, err)
	assert.Equal(t, "ok", set.Get("code_style"))
}

func TestSectionExtractor_ProviderFailure(t *testing.T) {
	llm := newStubLLM(func(context.Context, []driven.ChatMessage) (string, error) {
		return "", domain.NewProviderError("stub", 429, domain.ErrRateLimited)
	})

	_, _, err := NewSectionExtractor(llm, stubPrompts{}, testSettings()).
		Extract(context.Background(), "demo", conventions)

	var failure *domain.StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, domain.StageExtract, failure.Stage)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestSectionExtractor_NonRetryableFailure(t *testing.T) {
	llm := newStubLLM(func(context.Context, []driven.ChatMessage) (string, error) {
		return "", errors.New("connection refused")
	})

	_, _, err := NewSectionExtractor(llm, stubPrompts{}, testSettings()).
		Extract(context.Background(), "demo", conventions)

	var failure *domain.StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, llm.callCount())
}

func TestSectionExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewSectionExtractor(replying("{}"), stubPrompts{}, testSettings()).
		Extract(ctx, "demo", conventions)

	assert.ErrorIs(t, err, domain.ErrRunCancelled)
	var failure *domain.StageFailure
	assert.False(t, errors.As(err, &failure))
}

func TestConform_EveryKeyPresentNoDegradation(t *testing.T) {
	set, _ := domain.NewSectionSet(domain.SchemaStrict)
	raw := make(map[string]any)
	for _, k := range domain.SectionKeys(domain.SchemaStrict) {
		raw[k] = strings.ToUpper(k)
	}

	out, degradations, err := conform(set, raw)

	require.NoError(t, err)
	assert.Empty(t, degradations)
	assert.Equal(t, "CODE_STYLE", out.Get("code_style"))
}

func TestConform_HeadingKeysAreMapped(t *testing.T) {
	set, _ := domain.NewSectionSet(domain.SchemaComprehensive)
	raw := map[string]any{
		"Project Overview":             "A CLI.",
		"Anti-Patterns & Restrictions": "Never panic.",
		"Code-Style":                   "gofmt.",
		"TECH_STACK":                   "Go",
		"Unrelated Heading":            "dropped",
	}

	out, degradations, err := conform(set, raw)

	require.NoError(t, err)
	assert.Equal(t, "A CLI.", out.Get("project_overview"))
	assert.Equal(t, "Never panic.", out.Get("anti_patterns_and_restrictions"))
	assert.Equal(t, "gofmt.", out.Get("code_style"))
	assert.Equal(t, "Go", out.Get("tech_stack"))
	assert.ElementsMatch(t, domain.SectionKeys(domain.SchemaComprehensive), out.Keys())
	require.Len(t, degradations, 1)
	assert.NotContains(t, degradations[0].Message, "project_overview")
	assert.NotContains(t, degradations[0].Message, "code_style")
}

func TestConform_ExactKeyWinsOverHeading(t *testing.T) {
	set, _ := domain.NewSectionSet(domain.SchemaStrict)
	raw := map[string]any{
		"code_style":                "exact",
		"Code Style & Strict Rules": "alias",
	}

	out, _, err := conform(set, raw)

	require.NoError(t, err)
	assert.Equal(t, "exact", out.Get("code_style"))
}
