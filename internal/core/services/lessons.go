package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// LessonsNotePath tags the note produced from repository history.
const LessonsNotePath = "git-history"

// lessonsReply is the structured reply of the lessons call.
type lessonsReply struct {
	LessonsLearned string `json:"lessons_learned" yaml:"lessons_learned"`
	AntiPatterns   string `json:"anti_patterns_and_restrictions" yaml:"anti_patterns_and_restrictions"`
}

// LessonsInput is the history material analysed for lessons learned.
type LessonsInput struct {
	// RevertHistory is the log and diffs of reverted commits. May be empty.
	RevertHistory string

	// FailedPullRequest is the title, body and diff of a rejected pull request. May be empty.
	FailedPullRequest string
}

// IsEmpty reports whether there is nothing to analyse.
func (in LessonsInput) IsEmpty() bool {
	return strings.TrimSpace(in.RevertHistory) == "" && strings.TrimSpace(in.FailedPullRequest) == ""
}

// LessonsLearner turns reverted changes and failed pull requests into an
// analysis note of lessons and anti-patterns.
type LessonsLearner struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	retrier *Retrier
}

// NewLessonsLearner creates a lessons learner backed by the primary model.
func NewLessonsLearner(llm driven.LLMService, prompts driven.PromptStore, settings domain.PipelineSettings) *LessonsLearner {
	return &LessonsLearner{
		llm:     llm,
		prompts: prompts,
		retrier: NewRetrier(settings.RetryLimit, settings.PerCallTimeout),
	}
}

// Learn returns a note tagged LessonsNotePath. ok is false when there was
// no input or the call failed; failures degrade to no note and only
// cancellation is returned as an error.
func (l *LessonsLearner) Learn(ctx context.Context, repoName string, in LessonsInput, seq int) (note domain.AnalysisNote, ok bool, err error) {
	if in.IsEmpty() {
		logger.Info("No reverted commits or failed pull request to learn from")
		return domain.AnalysisNote{}, false, nil
	}

	system, err := l.prompts.Load(driven.PromptLessons)
	if err != nil {
		return domain.AnalysisNote{}, false, fmt.Errorf("load lessons prompt: %w", err)
	}
	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: lessonsMessage(repoName, in)},
	}

	reply, err := Retry(ctx, l.retrier, "lessons learned", func(ctx context.Context) (lessonsReply, error) {
		raw, err := l.llm.Chat(ctx, messages, driven.ChatOptions{JSON: true})
		if err != nil {
			return lessonsReply{}, err
		}
		var reply lessonsReply
		if err := decodeLenient(raw, &reply); err != nil || (reply.LessonsLearned == "" && reply.AntiPatterns == "") {
			text := strings.TrimSpace(raw)
			if text == "" {
				return lessonsReply{}, fmt.Errorf("%w: empty lessons response", domain.ErrMalformedResponse)
			}
			reply = lessonsReply{LessonsLearned: text}
		}
		return reply, nil
	})
	if err != nil {
		if isCancellation(err) {
			return domain.AnalysisNote{}, false, err
		}
		logger.Warn("Lessons learned analysis failed, continuing without it: %v", err)
		return domain.AnalysisNote{}, false, nil
	}

	var b strings.Builder
	if s := strings.TrimSpace(reply.LessonsLearned); s != "" {
		b.WriteString("Lessons learned from past failures:\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(reply.AntiPatterns); s != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Anti-patterns rejected by this repository:\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return domain.AnalysisNote{Seq: seq, Path: LessonsNotePath, Text: strings.TrimSpace(b.String())}, true, nil
}

func lessonsMessage(repoName string, in LessonsInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", repoName)
	b.WriteString("\nReverted commits:\n")
	if strings.TrimSpace(in.RevertHistory) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(in.RevertHistory)
		b.WriteString("\n")
	}
	b.WriteString("\nFailed pull request:\n")
	if strings.TrimSpace(in.FailedPullRequest) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(in.FailedPullRequest)
		b.WriteString("\n")
	}
	return b.String()
}
