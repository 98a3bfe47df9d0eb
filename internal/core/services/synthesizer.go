package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// ConventionsSynthesizer folds the ordered note sequence into one
// conventions document. Inputs larger than the synthesis batch size are
// reduced batch by batch against a running summary.
type ConventionsSynthesizer struct {
	llm      driven.LLMService
	prompts  driven.PromptStore
	settings domain.PipelineSettings
	retrier  *Retrier
}

// NewConventionsSynthesizer creates a synthesizer backed by the primary model.
func NewConventionsSynthesizer(llm driven.LLMService, prompts driven.PromptStore, settings domain.PipelineSettings) *ConventionsSynthesizer {
	return &ConventionsSynthesizer{
		llm:      llm,
		prompts:  prompts,
		settings: settings,
		retrier:  NewRetrier(settings.RetryLimit, settings.PerCallTimeout),
	}
}

// Synthesize produces the SynthesizedDocument. Empty input yields an empty
// document and a degradation without calling the model. A call that fails
// after every attempt returns a *domain.StageFailure.
func (s *ConventionsSynthesizer) Synthesize(
	ctx context.Context,
	repoName string,
	notes []domain.AnalysisNote,
) (domain.SynthesizedDocument, []domain.Degradation, error) {
	blocks := noteBlocks(notes, s.settings.SynthesisBatchSize)
	if len(blocks) == 0 {
		logger.Warn("No analysis notes to synthesize for %s", repoName)
		return domain.SynthesizedDocument{}, []domain.Degradation{{
			Stage:   domain.StageSynthesize,
			Message: "no usable analysis notes; conventions document is empty",
		}}, nil
	}

	batches := batchBlocks(blocks, s.settings.SynthesisBatchSize)
	logger.Info("Synthesizing %d notes in %d batch(es)", len(blocks), len(batches))

	system, err := s.prompts.Load(driven.PromptSynthesize)
	if err != nil {
		return domain.SynthesizedDocument{}, nil, fmt.Errorf("load synthesis prompt: %w", err)
	}
	summary, err := s.call(ctx, "synthesize batch 1", system, synthesisMessage(repoName, s.settings.Variant, batches[0]))
	if err != nil {
		return domain.SynthesizedDocument{}, nil, err
	}

	if len(batches) > 1 {
		fold, err := s.prompts.Load(driven.PromptSynthesizeFold)
		if err != nil {
			return domain.SynthesizedDocument{}, nil, fmt.Errorf("load fold prompt: %w", err)
		}
		for i, batch := range batches[1:] {
			label := fmt.Sprintf("synthesize batch %d", i+2)
			summary, err = s.call(ctx, label, fold, foldMessage(repoName, s.settings.Variant, summary, batch))
			if err != nil {
				return domain.SynthesizedDocument{}, nil, err
			}
		}
	}

	return domain.SynthesizedDocument{
		Markdown:  summary,
		NotesUsed: len(blocks),
		Batches:   len(batches),
	}, nil, nil
}

func (s *ConventionsSynthesizer) call(ctx context.Context, label, system, user string) (string, error) {
	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}
	out, err := Retry(ctx, s.retrier, label, func(ctx context.Context) (string, error) {
		raw, err := s.llm.Chat(ctx, messages, driven.ChatOptions{})
		if err != nil {
			return "", err
		}
		text := stripFences(raw)
		if text == "" {
			return "", fmt.Errorf("%w: empty synthesis response", domain.ErrMalformedResponse)
		}
		return text, nil
	})
	if err != nil {
		if isCancellation(err) {
			return "", err
		}
		return "", &domain.StageFailure{Stage: domain.StageSynthesize, Err: err}
	}
	return out, nil
}

// noteBlocks formats the non-empty notes in order. A single note longer
// than limit is cut to fit.
func noteBlocks(notes []domain.AnalysisNote, limit int) []string {
	var blocks []string
	for _, n := range notes {
		if n.IsEmpty() {
			continue
		}
		header := "### " + displayPath(n.Path)
		if n.Truncated {
			header += " (partial coverage)"
		}
		block := header + "\n" + strings.TrimSpace(n.Text) + "\n"
		if limit > 0 && len(block) > limit {
			block = truncateHead(block, limit)
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// batchBlocks packs blocks in order into batches of at most limit characters.
func batchBlocks(blocks []string, limit int) []string {
	var batches []string
	var cur strings.Builder
	for _, b := range blocks {
		if cur.Len() > 0 && cur.Len()+len(b)+1 > limit {
			batches = append(batches, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(b)
	}
	if cur.Len() > 0 {
		batches = append(batches, cur.String())
	}
	return batches
}

func synthesisMessage(repoName string, variant domain.SchemaVariant, notes string) string {
	return fmt.Sprintf("Repository: %s\nDocument focus: %s\n\nAnalysis notes, in exploration order:\n\n%s",
		repoName, variant.Description(), notes)
}

func foldMessage(repoName string, variant domain.SchemaVariant, summary, notes string) string {
	return fmt.Sprintf("Repository: %s\nDocument focus: %s\n\nCurrent conventions document:\n\n%s\n\nAdditional analysis notes:\n\n%s",
		repoName, variant.Description(), summary, notes)
}
