// Package domain defines the core entities of the agentsmd pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceTree: The ordered path to content mapping of a repository
//   - AnalysisNote: One exploration iteration's observations
//   - SynthesizedDocument: The cohesive conventions narrative
//   - SectionSet: Schema-conformant section texts
//   - RenderedDocument: The final AGENTS.md text
//   - RunRecord: Diagnostics for one pipeline run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
