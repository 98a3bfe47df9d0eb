package driving

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// GenerateRequest describes one AGENTS.md generation run.
type GenerateRequest struct {
	// Target is the repository to document.
	Target domain.RepoTarget

	// Lessons enables reverted-commit analysis of a local checkout.
	Lessons bool

	// FailedPR is a GitHub pull request number analysed for lessons. Zero disables it.
	FailedPR int

	// Merge folds the new sections into an existing AGENTS.md.
	Merge bool

	// Observer receives progress events. May be nil.
	Observer func(domain.Event)
}

// GenerateResult is the outcome of a successful run.
type GenerateResult struct {
	// Run is the diagnostics record of the run.
	Run domain.RunRecord

	// Document is the rendered AGENTS.md.
	Document domain.RenderedDocument

	// Sections is the extracted SectionSet before rendering.
	Sections domain.SectionSet

	// OutputPath is where the document was written.
	OutputPath string
}

// AgentsGenerator runs the generation pipeline.
type AgentsGenerator interface {
	// Generate runs every stage for the request. A *domain.StageFailure
	// aborts the run and nothing is persisted.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// GeneratorOptions selects the wiring of a generator. Settings are already
// resolved, so flags and config file values have been applied.
type GeneratorOptions struct {
	Settings domain.AppSettings

	// ViaAPI materializes GitHub targets through the REST API instead of
	// cloning them.
	ViaAPI bool
}

// GeneratorFactory builds a generator for one configuration. The returned
// cleanup releases provider connections and is always safe to call.
type GeneratorFactory func(opts GeneratorOptions) (AgentsGenerator, func(), error)
