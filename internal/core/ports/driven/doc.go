// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - LLMService: the reasoning capability behind every LLM stage
//   - TreeMaterializer: turns a repository target into a SourceTree
//   - DocumentWriter: persists the rendered AGENTS.md
//   - ConfigStore: application configuration
//   - PromptStore: system prompts for each reasoning call
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunStore: run history. Without it runs are not recorded.
//   - RepositoryFetcher: clones GitHub targets. Required only for remote targets.
//   - RevertHistorySource, PullRequestSource: inputs for lessons learned.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
