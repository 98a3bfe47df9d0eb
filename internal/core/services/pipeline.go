package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.AgentsGenerator = (*Pipeline)(nil)

// PipelineDeps holds the collaborators of a Pipeline.
type PipelineDeps struct {
	// LLM is the primary model used for synthesis, extraction and lessons.
	LLM driven.LLMService

	// ExplorationLLM serves analyzer iterations. Nil means LLM.
	ExplorationLLM driven.LLMService

	// Prompts supplies the system prompt of every call.
	Prompts driven.PromptStore

	// Materializer builds the SourceTree.
	Materializer driven.TreeMaterializer

	// Writer persists the rendered document.
	Writer driven.DocumentWriter

	// Fetcher clones remote targets that have no local directory. Optional.
	Fetcher driven.RepositoryFetcher

	// Runs records run diagnostics. Optional.
	Runs driven.RunStore

	// RevertHistory and PullRequests feed lessons learned. Optional.
	RevertHistory driven.RevertHistorySource
	PullRequests  driven.PullRequestSource
}

// Pipeline runs the generation stages in order:
// materialize, analyze, synthesize, extract, render, persist.
// Each Generate call owns its tree, budget and notes; nothing is shared
// between runs.
type Pipeline struct {
	deps     PipelineDeps
	settings domain.PipelineSettings

	analyzer    *CodebaseAnalyzer
	synthesizer *ConventionsSynthesizer
	extractor   *SectionExtractor
	lessons     *LessonsLearner

	now func() time.Time
}

// NewPipeline validates the settings and wires the stages.
func NewPipeline(deps PipelineDeps, settings domain.PipelineSettings) (*Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if deps.LLM == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if deps.Prompts == nil || deps.Materializer == nil || deps.Writer == nil {
		return nil, fmt.Errorf("%w: prompts, materializer and writer are required", domain.ErrInvalidInput)
	}
	explorer := deps.ExplorationLLM
	if explorer == nil {
		explorer = deps.LLM
	}
	return &Pipeline{
		deps:        deps,
		settings:    settings,
		analyzer:    NewCodebaseAnalyzer(explorer, deps.Prompts, settings),
		synthesizer: NewConventionsSynthesizer(deps.LLM, deps.Prompts, settings),
		extractor:   NewSectionExtractor(deps.LLM, deps.Prompts, settings),
		lessons:     NewLessonsLearner(deps.LLM, deps.Prompts, settings),
		now:         time.Now,
	}, nil
}

// runState carries one run through the stages.
type runState struct {
	record   domain.RunRecord
	observer func(domain.Event)
}

func (r *runState) advance(to domain.RunState, stage domain.Stage, msg string) {
	r.record.State = to
	logger.Info("%s: %s", to, msg)
	if r.observer != nil {
		r.observer(domain.Event{Stage: stage, State: to, Message: msg})
	}
}

func (r *runState) begin(stage domain.Stage, title string) {
	logger.Section(title)
	if r.observer != nil {
		r.observer(domain.Event{Stage: stage, State: r.record.State, Message: title})
	}
}

func (r *runState) degrade(ds ...domain.Degradation) {
	r.record.Degradations = append(r.record.Degradations, ds...)
}

// Generate runs every stage for req. A stage failure moves the run to
// Failed and nothing is written.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (p *Pipeline) Generate(ctx context.Context, req driving.GenerateRequest) (result *driving.GenerateResult, err error) {
	target := req.Target
	if target.Name == "" {
		return nil, fmt.Errorf("%w: repository target has no name", domain.ErrInvalidInput)
	}

	run := &runState{
		record: domain.RunRecord{
			ID:         uuid.NewString(),
			Repository: target.Name,
			Variant:    p.settings.Variant,
			State:      domain.RunIdle,
			StartedAt:  p.now(),
		},
		observer: req.Observer,
	}

	var stage domain.Stage
	defer func() {
		if err != nil {
			run.record.State = domain.RunFailed
			run.record.FailedStage = stage
			run.record.Error = err.Error()
			logger.Error("Run %s failed at %s: %v", run.record.ID, stage, err)
			if run.observer != nil {
				run.observer(domain.Event{Stage: stage, State: domain.RunFailed, Message: err.Error()})
			}
		}
		run.record.FinishedAt = p.now()
		p.saveRun(ctx, run.record)
		if result != nil {
			result.Run = run.record
		}
	}()

	boundary := func(next domain.Stage) error {
		stage = next
		if ctx.Err() != nil {
			return fmt.Errorf("%w before %s: %w", domain.ErrRunCancelled, next, ctx.Err())
		}
		return nil
	}

	// Materialize.
	if err = boundary(domain.StageMaterialize); err != nil {
		return nil, err
	}
	run.begin(stage, "Loading source tree")
	if target.IsRemote() && target.Dir == "" && p.deps.Fetcher != nil {
		dir, cleanup, ferr := p.deps.Fetcher.Fetch(ctx, target)
		if ferr != nil {
			return nil, &domain.StageFailure{Stage: stage, Err: ferr}
		}
		defer cleanup()
		target.Dir = dir
	}
	tree, err := p.deps.Materializer.Materialize(ctx, target)
	if err != nil {
		return nil, &domain.StageFailure{Stage: stage, Err: err}
	}
	if tree.Len() == 0 {
		run.degrade(degrade(stage, "repository has no readable source files"))
	}
	run.advance(domain.RunTreeLoaded, stage, fmt.Sprintf("%d files, %d chars", tree.Len(), tree.TotalSize()))

	// Analyze.
	if err = boundary(domain.StageAnalyze); err != nil {
		return nil, err
	}
	run.begin(stage, "Exploring codebase")
	analysis, err := p.analyzer.Analyze(ctx, target.Name, tree)
	if analysis != nil {
		run.record.Iterations = analysis.Usage.Iterations
		run.record.CharsShown = analysis.Usage.CharsShown
		run.record.StopReason = analysis.StopReason
	}
	if err != nil {
		return nil, err
	}
	if analysis.FailedIterations > 0 {
		run.degrade(degrade(stage, fmt.Sprintf("%d exploration iteration(s) failed and were recorded as empty notes", analysis.FailedIterations)))
	}
	if analysis.Usage.TruncatedFiles > 0 {
		run.degrade(degrade(stage, fmt.Sprintf("%d oversized file(s) were truncated", analysis.Usage.TruncatedFiles)))
	}
	notes := analysis.Notes
	run.advance(domain.RunAnalyzed, stage, fmt.Sprintf("%d notes, stopped: %s", len(notes), analysis.StopReason))

	// Lessons learned.
	if req.Lessons || req.FailedPR > 0 {
		if err = boundary(domain.StageLessons); err != nil {
			return nil, err
		}
		run.begin(stage, "Learning from repository history")
		in := p.gatherLessons(ctx, target, req, run)
		note, ok, lerr := p.lessons.Learn(ctx, target.Name, in, len(notes))
		if lerr != nil {
			err = lerr
			return nil, err
		}
		if ok {
			notes = append(notes, note)
		} else if !in.IsEmpty() {
			run.degrade(degrade(stage, "lessons learned analysis failed; continuing without it"))
		}
	}

	// Synthesize.
	if err = boundary(domain.StageSynthesize); err != nil {
		return nil, err
	}
	run.begin(stage, "Synthesizing conventions")
	synthesized, ds, err := p.synthesizer.Synthesize(ctx, target.Name, notes)
	if err != nil {
		return nil, err
	}
	run.degrade(ds...)
	run.advance(domain.RunSynthesized, stage, fmt.Sprintf("%d chars from %d batch(es)", len(synthesized.Markdown), synthesized.Batches))

	// Extract.
	if err = boundary(domain.StageExtract); err != nil {
		return nil, err
	}
	run.begin(stage, "Extracting sections")
	sections, ds, err := p.extractor.Extract(ctx, target.Name, synthesized)
	if err != nil {
		return nil, err
	}
	run.degrade(ds...)
	run.advance(domain.RunSectionsExtracted, stage, fmt.Sprintf("%d non-empty sections", len(sections.NonEmptyKeys())))

	// Render.
	if err = boundary(domain.StageRender); err != nil {
		return nil, err
	}
	run.begin(stage, "Rendering AGENTS.md")
	doc := Render(sections, p.settings.Variant, target.Name)
	if req.Merge {
		doc, err = p.merge(ctx, target.Name, sections, run)
		if err != nil {
			err = &domain.StageFailure{Stage: stage, Err: err}
			return nil, err
		}
	}
	if ExceedsStrictLimit(doc) {
		run.degrade(degrade(stage, fmt.Sprintf("document is over %d words; consider trimming so agents stay focused on constraints", StrictWordLimit)))
	}
	run.advance(domain.RunRendered, stage, fmt.Sprintf("%d chars", len(doc.Content)))

	// Persist.
	if err = boundary(domain.StagePersist); err != nil {
		return nil, err
	}
	run.begin(stage, "Writing AGENTS.md")
	path, err := p.deps.Writer.Write(ctx, doc)
	if err != nil {
		err = &domain.StageFailure{Stage: stage, Err: err}
		return nil, err
	}
	run.record.OutputPath = path
	run.advance(domain.RunPersisted, stage, "saved to "+path)

	return &driving.GenerateResult{
		Document:   doc,
		Sections:   sections,
		OutputPath: path,
	}, nil
}

// gatherLessons collects history inputs. Missing sources degrade the run.
func (p *Pipeline) gatherLessons(ctx context.Context, target domain.RepoTarget, req driving.GenerateRequest, run *runState) LessonsInput {
	var in LessonsInput
	if req.Lessons {
		switch {
		case p.deps.RevertHistory == nil || target.Dir == "":
			run.degrade(degrade(domain.StageLessons, "no local git checkout; reverted commit history skipped"))
		default:
			history, err := p.deps.RevertHistory.RevertHistory(ctx, target.Dir)
			if err != nil {
				run.degrade(degrade(domain.StageLessons, fmt.Sprintf("read reverted commits: %v", err)))
			}
			in.RevertHistory = history
		}
	}
	if req.FailedPR > 0 {
		switch {
		case p.deps.PullRequests == nil || target.Owner == "" || target.Repo == "":
			run.degrade(degrade(domain.StageLessons, "failed pull request needs a GitHub target; skipped"))
		default:
			report, err := p.deps.PullRequests.PullRequestReport(ctx, target.Owner, target.Repo, req.FailedPR)
			if err != nil {
				run.degrade(degrade(domain.StageLessons, fmt.Sprintf("fetch pull request #%d: %v", req.FailedPR, err)))
			}
			in.FailedPullRequest = report
		}
	}
	return in
}

// merge folds the fresh sections into the previously written document.
func (p *Pipeline) merge(ctx context.Context, repoName string, sections domain.SectionSet, run *runState) (domain.RenderedDocument, error) {
	existing, err := p.deps.Writer.ReadExisting(ctx, repoName)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("No existing AGENTS.md for %s; writing a fresh document", repoName)
		return Render(sections, p.settings.Variant, repoName), nil
	}
	if err != nil {
		return domain.RenderedDocument{}, fmt.Errorf("read existing document: %w", err)
	}
	parsed := ParseDocument(existing, p.settings.Variant)
	merged, err := MergeSections(parsed.Sections, sections)
	if err != nil {
		return domain.RenderedDocument{}, err
	}
	if len(parsed.Custom) > 0 {
		logger.Info("Preserving %d custom section(s)", len(parsed.Custom))
	}
	run.advance(run.record.State, domain.StageRender, "merged with existing AGENTS.md")
	return RenderMerged(merged, p.settings.Variant, repoName, parsed.Custom), nil
}

func (p *Pipeline) saveRun(ctx context.Context, record domain.RunRecord) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.Save(context.WithoutCancel(ctx), record); err != nil {
		logger.Warn("Failed to record run %s: %v", record.ID, err)
	}
}
