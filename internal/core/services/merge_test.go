package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

const existingDoc = `# AGENTS.md — demo

## Code Style & Strict Rules

- Use tabs.

` + "```go" + `
## not a heading
x := 1
` + "```" + `

## Team Contacts

Ask in #platform.

## Execution Commands

- make test
`

func TestParseDocument(t *testing.T) {
	parsed := ParseDocument(existingDoc, domain.SchemaStrict)

	assert.Equal(t, "- Use tabs.\n\n```go\n## not a heading\nx := 1\n```", parsed.Sections["code_style"])
	assert.Equal(t, "- make test", parsed.Sections["execution_commands"])
	require.Len(t, parsed.Custom, 1)
	assert.Equal(t, domain.CustomSection{Heading: "Team Contacts", Content: "Ask in #platform."}, parsed.Custom[0])
}

func TestParseDocument_RenderRoundTrip(t *testing.T) {
	set := sectionSet(t, domain.SchemaComprehensive, map[string]string{
		"project_overview": "A tool.",
		"testing_commands": "```bash\ngo test ./...\n```",
	})
	doc := Render(set, domain.SchemaComprehensive, "demo")

	parsed := ParseDocument(doc.Content, domain.SchemaComprehensive)

	assert.Equal(t, map[string]string{
		"project_overview": "A tool.",
		"testing_commands": "```bash\ngo test ./...\n```",
	}, parsed.Sections)
	assert.Empty(t, parsed.Custom)
}

func TestMergeSections(t *testing.T) {
	existing := map[string]string{
		"code_style":         "- Use tabs.\n```go\nx := 1\n```",
		"execution_commands": "- make test",
	}
	fresh := sectionSet(t, domain.SchemaStrict, map[string]string{
		"code_style":         "-  Use   tabs.\n```go\nx := 1\n```\n- Wrap errors with %w.",
		"execution_commands": "",
		"repo_quirks":        "- vendor/ is committed",
	})

	merged, err := MergeSections(existing, fresh)

	require.NoError(t, err)
	assert.Equal(t, domain.SchemaStrict, merged.Variant())
	assert.Equal(t, "- Use tabs.\n```go\nx := 1\n```\n- Wrap errors with %w.", merged.Get("code_style"))
	assert.Equal(t, "- make test", merged.Get("execution_commands"), "existing text survives an empty fresh section")
	assert.Equal(t, "- vendor/ is committed", merged.Get("repo_quirks"))
}

func TestMergeSections_Idempotent(t *testing.T) {
	fresh := sectionSet(t, domain.SchemaStrict, map[string]string{"code_style": "- a\n- b"})

	once, err := MergeSections(nil, fresh)
	require.NoError(t, err)
	twice, err := MergeSections(once.Map(), fresh)
	require.NoError(t, err)

	assert.Equal(t, once.Map(), twice.Map())
}

func TestSplitUnits(t *testing.T) {
	units := splitUnits("a\n\n```\nb\n\nc\n```\nd\n```\nunterminated")
	assert.Equal(t, []string{"a", "```\nb\n\nc\n```", "d", "```\nunterminated"}, units)
}
