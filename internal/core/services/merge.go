package services

import (
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// ParsedDocument is an existing AGENTS.md split into schema sections and
// custom sections.
type ParsedDocument struct {
	// Sections maps schema keys to their text.
	Sections map[string]string

	// Custom holds sections whose heading is not in the schema, in order.
	Custom []domain.CustomSection
}

// ParseDocument splits an existing document on "## " headings. Headings
// inside fenced code blocks do not start a section, and text before the
// first heading (the title) is discarded.
func ParseDocument(content string, variant domain.SchemaVariant) ParsedDocument {
	parsed := ParsedDocument{Sections: make(map[string]string)}

	var heading string
	var body []string
	inFence := false
	started := false

	flush := func() {
		if !started {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if s, ok := domain.SectionByHeading(variant, heading); ok {
			parsed.Sections[s.Key] = text
		} else {
			parsed.Custom = append(parsed.Custom, domain.CustomSection{Heading: heading, Content: text})
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence && strings.HasPrefix(line, "## ") {
			flush()
			heading = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			body = nil
			started = true
			continue
		}
		if started {
			body = append(body, line)
		}
	}
	flush()
	return parsed
}

// MergeSections folds fresh sections into the existing ones. Existing text
// is kept, and fresh units (lines, or whole fenced code blocks) that are not
// already present are appended.
func MergeSections(existing map[string]string, fresh domain.SectionSet) (domain.SectionSet, error) {
	merged, err := domain.NewSectionSet(fresh.Variant())
	if err != nil {
		return domain.SectionSet{}, err
	}
	for _, key := range fresh.Keys() {
		if err := merged.Set(key, mergeText(existing[key], fresh.Get(key))); err != nil {
			return domain.SectionSet{}, err
		}
	}
	return merged, nil
}

func mergeText(old, fresh string) string {
	oldUnits := splitUnits(old)
	if len(oldUnits) == 0 {
		return strings.TrimSpace(fresh)
	}
	seen := make(map[string]bool, len(oldUnits))
	out := make([]string, 0, len(oldUnits))
	for _, u := range oldUnits {
		seen[normaliseUnit(u)] = true
		out = append(out, u)
	}
	for _, u := range splitUnits(fresh) {
		key := normaliseUnit(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return strings.Join(out, "\n")
}

// splitUnits splits text into non-blank lines, keeping each fenced code
// block together as one unit.
func splitUnits(text string) []string {
	var units []string
	var fence []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if fence != nil {
			fence = append(fence, line)
			if strings.HasPrefix(trimmed, "```") {
				units = append(units, strings.Join(fence, "\n"))
				fence = nil
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			fence = []string{line}
			continue
		}
		if trimmed != "" {
			units = append(units, line)
		}
	}
	if fence != nil {
		units = append(units, strings.Join(fence, "\n"))
	}
	return units
}

func normaliseUnit(u string) string {
	return strings.Join(strings.Fields(u), " ")
}
