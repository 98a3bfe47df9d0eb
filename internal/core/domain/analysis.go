package domain

// ExplorationChunk is the slice of the SourceTree shown to one reasoning call.
type ExplorationChunk struct {
	// Path is the directory or file the chunk covers ("" for the repository root).
	Path string

	// Files are the files shown, with content already truncated where needed.
	Files []SourceFile

	// Truncated is set when at least one file was cut to fit the chunk size.
	Truncated bool
}

// Size returns the number of characters the chunk shows.
func (c ExplorationChunk) Size() int {
	total := 0
	for _, f := range c.Files {
		total += f.Size()
	}
	return total
}

// AnalysisNote is the unstructured output of one exploration iteration.
// Notes are ordered by Seq; later stages treat earlier notes as context.
type AnalysisNote struct {
	// Seq is the issue order of the iteration that produced the note.
	Seq int

	// Path is the sub-path the iteration covered.
	Path string

	// Text is the free-text observations. Empty when the iteration failed.
	Text string

	// Truncated mirrors the chunk flag so synthesis can account for
	// incomplete coverage.
	Truncated bool

	// Failed is set when the reasoning call failed after retries.
	Failed bool

	// FollowUps are the sub-paths the iteration asked to see next.
	FollowUps []string
}

// IsEmpty reports whether the note carries no observations.
func (n AnalysisNote) IsEmpty() bool {
	return n.Failed || len(n.Text) == 0
}

// StopReason explains why exploration ended.
type StopReason string

// Exploration stop reasons.
const (
	// StopBudgetExhausted means the content or iteration ceiling was reached.
	StopBudgetExhausted StopReason = "budget_exhausted"

	// StopQueueExhausted means every queued group was explored.
	StopQueueExhausted StopReason = "queue_exhausted"

	// StopDeadline means the wall-clock limit elapsed.
	StopDeadline StopReason = "deadline"

	// StopCancelled means the run was cancelled externally.
	StopCancelled StopReason = "cancelled"
)

// BudgetUsage is a snapshot of the exploration budget.
type BudgetUsage struct {
	// CharsShown is the total content shown to the reasoning service.
	CharsShown int

	// Iterations is the number of reasoning calls admitted.
	Iterations int

	// MaxChars is the content ceiling.
	MaxChars int

	// MaxIterations is the iteration ceiling.
	MaxIterations int

	// TruncatedFiles counts files cut to the maximum chunk size.
	TruncatedFiles int
}

// AnalysisResult is the output of the Codebase Analyzer.
type AnalysisResult struct {
	// Notes are ordered by Seq.
	Notes []AnalysisNote

	// Usage is the final budget snapshot.
	Usage BudgetUsage

	// StopReason explains why exploration ended.
	StopReason StopReason

	// FailedIterations counts notes recorded as failed.
	FailedIterations int
}
