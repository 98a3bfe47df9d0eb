package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return domain.ErrNotFound.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names. Each prompt is the system instruction of one
// reasoning call; the pipeline supplies the variable input as the user message.
const (
	// PromptExplore instructs one exploration iteration over a chunk of files.
	PromptExplore = "explore"

	// PromptExploreStrict is the exploration instruction for the strict schema.
	PromptExploreStrict = "explore_strict"

	// PromptSynthesize folds analysis notes into one conventions document.
	PromptSynthesize = "synthesize"

	// PromptSynthesizeFold folds a batch of notes into a running summary.
	PromptSynthesizeFold = "synthesize_fold"

	// PromptExtract maps the conventions document onto schema sections.
	PromptExtract = "extract"

	// PromptLessons turns reverted commits and failed pull requests into lessons.
	PromptLessons = "lessons"
)

// AllPromptNames returns every well-known prompt name.
func AllPromptNames() []string {
	return []string{
		PromptExplore,
		PromptExploreStrict,
		PromptSynthesize,
		PromptSynthesizeFold,
		PromptExtract,
		PromptLessons,
	}
}
