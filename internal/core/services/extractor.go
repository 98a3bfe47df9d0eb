package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// SectionExtractor maps the conventions document onto the closed section
// schema. Whatever the model returns, the result holds exactly the schema
// keys: missing keys become "" and unknown keys are dropped.
type SectionExtractor struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.PipelineSettings
	retrier  *Retrier
}

// NewSectionExtractor creates an extractor backed by the primary model.
func NewSectionExtractor(llm driven.LLMService, prompts driven.PromptStore, settings domain.PipelineSettings) *SectionExtractor {
	return &SectionExtractor{
		llm:      llm,
		prompts:  prompts,
		settings: settings,
		retrier:  NewRetrier(settings.RetryLimit, settings.PerCallTimeout),
	}
}

// Extract returns a complete SectionSet for the configured variant.
// Unparseable responses are retried and finally recovered as an all-empty
// set; provider failures that exhaust the retries return a *domain.StageFailure.
func (e *SectionExtractor) Extract(
	ctx context.Context,
	repoName string,
	doc domain.SynthesizedDocument,
) (domain.SectionSet, []domain.Degradation, error) {
	variant := e.settings.Variant
	set, err := domain.NewSectionSet(variant)
	if err != nil {
		return domain.SectionSet{}, nil, err
	}

	if doc.IsEmpty() {
		return set, []domain.Degradation{degrade(domain.StageExtract,
			"conventions document is empty; every section left blank")}, nil
	}

	system, err := e.prompts.Load(driven.PromptExtract)
	if err != nil {
		return domain.SectionSet{}, nil, fmt.Errorf("load extraction prompt: %w", err)
	}
	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: extractionMessage(repoName, variant, doc.Markdown)},
	}

	raw, err := Retry(ctx, e.retrier, "extract sections", func(ctx context.Context) (map[string]any, error) {
		resp, err := e.llm.Chat(ctx, messages, driven.ChatOptions{JSON: true})
		if err != nil {
			return nil, err
		}
		return decodeSectionMap(resp)
	})
	if err != nil {
		if isCancellation(err) {
			return domain.SectionSet{}, nil, err
		}
		if errors.Is(err, domain.ErrMalformedResponse) && !errors.Is(err, domain.ErrProvider) {
			return set, []domain.Degradation{degrade(domain.StageExtract,
				fmt.Sprintf("%v: extraction response unusable after %d attempts; every section left blank",
					domain.ErrSchemaViolation, e.retrier.Attempts()))}, nil
		}
		return domain.SectionSet{}, nil, &domain.StageFailure{Stage: domain.StageExtract, Err: err}
	}

	return conform(set, raw)
}

// conform copies schema keys from raw into set and reports what was fixed.
// Replies keyed by heading or by a differently spelled key are mapped onto
// the schema key; an exact key wins over such aliases.
func conform(set domain.SectionSet, raw map[string]any) (domain.SectionSet, []domain.Degradation, error) {
	var degradations []domain.Degradation

	values, extra := resolveSectionKeys(set, raw)

	var missing []string
	for _, key := range set.Keys() {
		value, ok := values[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		text := coerceText(value)
		if closed, changed := closeFences(text); changed {
			text = closed
			logger.Debug("Closed unterminated code block in section %s", key)
		}
		if err := set.Set(key, text); err != nil {
			return domain.SectionSet{}, nil, err
		}
	}
	if len(missing) > 0 {
		degradations = append(degradations, degrade(domain.StageExtract,
			fmt.Sprintf("%v: missing sections defaulted to empty: %s", domain.ErrSchemaViolation, strings.Join(missing, ", "))))
	}

	if len(extra) > 0 {
		sort.Strings(extra)
		logger.Debug("Dropped unexpected sections: %s", strings.Join(extra, ", "))
	}

	return set, degradations, nil
}

// resolveSectionKeys maps every raw key onto a schema key of set. Keys that
// match nothing are returned as extra.
func resolveSectionKeys(set domain.SectionSet, raw map[string]any) (map[string]any, []string) {
	values := make(map[string]any, len(raw))
	aliases := make(map[string]string)
	var extra []string

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if set.Has(name) {
			values[name] = raw[name]
			continue
		}
		key, ok := aliasKey(set, name)
		if !ok {
			extra = append(extra, name)
			continue
		}
		if _, seen := aliases[key]; seen {
			extra = append(extra, name)
			continue
		}
		aliases[key] = name
	}
	for key, name := range aliases {
		if _, exact := values[key]; exact {
			extra = append(extra, name)
			continue
		}
		logger.Debug("Section %q mapped to %s", name, key)
		values[key] = raw[name]
	}
	return values, extra
}

// aliasKey matches a heading ("Project Overview") or a loosely spelled key
// ("Project-Overview") to a schema key.
func aliasKey(set domain.SectionSet, name string) (string, bool) {
	normalised := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
	if set.Has(normalised) {
		return normalised, true
	}
	if s, ok := domain.SectionByHeading(set.Variant(), name); ok && set.Has(s.Key) {
		return s.Key, true
	}
	return "", false
}

func degrade(stage domain.Stage, msg string) domain.Degradation {
	logger.Warn("%s: %s", stage, msg)
	return domain.Degradation{Stage: stage, Message: msg}
}

func extractionMessage(repoName string, variant domain.SchemaVariant, markdown string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n\n", repoName)
	b.WriteString("Return one JSON object with exactly these keys. Each value is a Markdown string; use \"\" when the document has nothing relevant.\n\n")
	for _, s := range domain.Sections(variant) {
		fmt.Fprintf(&b, "- %s (%s): %s\n", s.Key, s.Heading, s.Description)
	}
	b.WriteString("\nConventions document:\n\n")
	b.WriteString(markdown)
	return b.String()
}
