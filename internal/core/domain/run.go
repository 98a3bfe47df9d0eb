package domain

import "time"

// RunState is the pipeline-level state of a single run.
type RunState string

// Pipeline states, in the order a successful run visits them.
const (
	RunIdle              RunState = "idle"
	RunTreeLoaded        RunState = "tree_loaded"
	RunAnalyzed          RunState = "analyzed"
	RunSynthesized       RunState = "synthesized"
	RunSectionsExtracted RunState = "sections_extracted"
	RunRendered          RunState = "rendered"
	RunPersisted         RunState = "persisted"

	// RunFailed is terminal. A failed run is never resumed.
	RunFailed RunState = "failed"
)

// IsTerminal returns true for Persisted and Failed.
func (s RunState) IsTerminal() bool {
	return s == RunPersisted || s == RunFailed
}

// Next returns the state that follows s on success, or s itself when
// s is terminal.
func (s RunState) Next() RunState {
	switch s {
	case RunIdle:
		return RunTreeLoaded
	case RunTreeLoaded:
		return RunAnalyzed
	case RunAnalyzed:
		return RunSynthesized
	case RunSynthesized:
		return RunSectionsExtracted
	case RunSectionsExtracted:
		return RunRendered
	case RunRendered:
		return RunPersisted
	default:
		return s
	}
}

// Stage names one processing step of the pipeline.
type Stage string

// Pipeline stages.
const (
	StageMaterialize Stage = "materialize"
	StageAnalyze     Stage = "analyze"
	StageLessons     Stage = "lessons"
	StageSynthesize  Stage = "synthesize"
	StageExtract     Stage = "extract"
	StageRender      Stage = "render"
	StagePersist     Stage = "persist"
)

// Degradation records a non-fatal recovery from missing or invalid stage
// output. It is kept for diagnostics and never fails the run.
type Degradation struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// RunRecord summarises one pipeline run for diagnostics.
type RunRecord struct {
	ID           string
	Repository   string
	Variant      SchemaVariant
	State        RunState
	FailedStage  Stage
	Error        string
	Degradations []Degradation
	Iterations   int
	CharsShown   int
	StopReason   StopReason
	OutputPath   string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took, or zero if it has not finished.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run reached the persisted state.
func (r RunRecord) Succeeded() bool {
	return r.State == RunPersisted
}

// Event is a progress notification emitted while a run advances.
type Event struct {
	Stage   Stage
	State   RunState
	Message string
}
