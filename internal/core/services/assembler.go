package services

import (
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// StrictWordLimit is the length above which a strict document is flagged
// as too long to keep agents focused.
const StrictWordLimit = 800

// Render assembles the final document from a SectionSet. It is a pure
// function: sections appear in schema order under "## " headings and
// sections with blank text are omitted.
func Render(sections domain.SectionSet, variant domain.SchemaVariant, repoName string) domain.RenderedDocument {
	parts := []string{"# AGENTS.md — " + repoName + "\n"}
	for _, s := range domain.Sections(variant) {
		content := strings.TrimSpace(sections.Get(s.Key))
		if content == "" {
			continue
		}
		parts = append(parts, renderSection(s.Heading, content))
	}
	return domain.RenderedDocument{
		RepositoryName: repoName,
		Variant:        variant,
		Content:        strings.Join(parts, "\n"),
	}
}

// RenderMerged renders like Render and appends preserved custom sections
// after the schema sections.
func RenderMerged(sections domain.SectionSet, variant domain.SchemaVariant, repoName string, custom []domain.CustomSection) domain.RenderedDocument {
	doc := Render(sections, variant, repoName)
	if len(custom) == 0 {
		return doc
	}
	parts := []string{doc.Content}
	for _, c := range custom {
		content := strings.TrimSpace(c.Content)
		if content == "" {
			continue
		}
		parts = append(parts, renderSection(c.Heading, content))
	}
	doc.Content = strings.Join(parts, "\n")
	return doc
}

func renderSection(heading, content string) string {
	return "## " + heading + "\n\n" + content + "\n"
}

// ExceedsStrictLimit reports whether a strict document is longer than
// StrictWordLimit words.
func ExceedsStrictLimit(doc domain.RenderedDocument) bool {
	return doc.Variant == domain.SchemaStrict && len(strings.Fields(doc.Content)) > StrictWordLimit
}
