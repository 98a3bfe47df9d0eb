package domain

import (
	"fmt"
	"strings"
)

// SchemaVariant selects the closed list of sections a document contains.
type SchemaVariant string

// Available schema variants.
const (
	// SchemaComprehensive describes the whole project: overview, architecture,
	// conventions, testing, workflow and examples.
	SchemaComprehensive SchemaVariant = "comprehensive"

	// SchemaStrict focuses on hard rules, anti-patterns, quirks and lessons
	// learned. It deliberately omits project overview and architecture.
	SchemaStrict SchemaVariant = "strict"
)

// SchemaVersion is bumped whenever a variant's section list changes.
const SchemaVersion = 1

// IsValid returns true if the variant is recognised.
func (v SchemaVariant) IsValid() bool {
	switch v {
	case SchemaComprehensive, SchemaStrict:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (v SchemaVariant) String() string {
	return string(v)
}

// Description returns a human-readable description of the variant.
func (v SchemaVariant) Description() string {
	switch v {
	case SchemaComprehensive:
		return "Comprehensive (overview, architecture, conventions, workflow)"
	case SchemaStrict:
		return "Strict (rules, anti-patterns, quirks, lessons learned)"
	default:
		return unknownDescription
	}
}

// ParseSchemaVariant parses a variant name, case-insensitively.
func ParseSchemaVariant(s string) (SchemaVariant, error) {
	v := SchemaVariant(strings.ToLower(strings.TrimSpace(s)))
	if !v.IsValid() {
		return "", fmt.Errorf("%w: unknown schema variant %q (want comprehensive or strict)", ErrInvalidInput, s)
	}
	return v, nil
}

// Section is one schema-defined field of an AGENTS.md document.
type Section struct {
	// Key is the stable field name used in extraction responses.
	Key string

	// Heading is the level-two heading rendered for the section.
	Heading string

	// Description tells the extraction call what belongs in the section.
	Description string
}

//nolint:lll // Section descriptions are prompt text.
var comprehensiveSections = []Section{
	{"project_overview", "Project Overview", "Brief description of the project: what it does, its tech stack, primary language, and purpose. 2-4 sentences."},
	{"agent_persona", "Agent Persona", "The role and expertise level an AI assistant should adopt when working in this repository."},
	{"tech_stack", "Tech Stack", "Explicit list of supported languages, frameworks, and tools used in the repository."},
	{"architecture", "Architecture", "High-level map of where things live: directory layout, key modules, entry points, and their responsibilities. Use bullet points with file paths."},
	{"code_style", "Code Style", "Specific coding standards observed: language version, formatting, naming conventions, import ordering, typing rules, preferred patterns. Use concrete examples from the codebase."},
	{"anti_patterns_and_restrictions", "Anti-Patterns & Restrictions", "Specific anti-patterns and 'NEVER do this' rules the AI must strictly avoid."},
	{"database_and_state", "Database & State Management", "How data and state flow through the application, including databases or state managers."},
	{"error_handling_and_logging", "Error Handling & Logging", "Conventions for handling errors and formatting logs, highlighting specific utilities to use."},
	{"testing_commands", "Testing Commands", "Exact CLI commands to build, lint, test, and run the project, as a bullet list of runnable commands."},
	{"testing_guidelines", "Testing Guidelines", "How tests are written: framework, file placement, naming patterns, mocking strategies, coverage expectations."},
	{"security_and_compliance", "Security & Compliance", "Security guardrails, such as rules against exposing secrets or logging PII."},
	{"dependencies_and_environment", "Dependencies & Environment", "How to install dependencies, required environment variables, external services, and supported runtime versions."},
	{"pr_and_git_rules", "PR & Git Rules", "Commit message format, branch naming, required checks before merging, and review policies."},
	{"documentation_standards", "Documentation Standards", "Standards for doc comments, inline comments, and updating user documentation."},
	{"common_patterns", "Common Patterns", "Recurring design patterns, error handling idioms, logging conventions, and 'ALWAYS do X / NEVER do Y' rules."},
	{"agent_workflow", "Agent Workflow / SOP", "Step-by-step procedure an AI assistant should follow for a typical task in this codebase."},
	{"few_shot_examples", "Few-Shot Examples", "Concrete 'Good' vs 'Bad' code snippets taken from the codebase."},
}

//nolint:lll // Section descriptions are prompt text.
var strictSections = []Section{
	{"code_style", "Code Style & Strict Rules", "Specific strict coding standards observed. Use concrete examples."},
	{"anti_patterns_and_restrictions", "Anti-Patterns & Restrictions", "Specific anti-patterns and 'NEVER do this' rules the AI must strictly avoid."},
	{"security_and_compliance", "Security & Compliance", "Strict security guardrails."},
	{"lessons_learned", "Lessons Learned (Past Failures)", "Lessons learned from past mistakes, reverted changes, and rejected pull requests."},
	{"repo_quirks", "Repository Quirks & Gotchas", "Non-obvious gotchas specific to this project that an agent could not easily grep for."},
	{"execution_commands", "Execution Commands", "Exact commands the agent is allowed to execute."},
}

// Sections returns the ordered section list of a variant.
// Unknown variants return nil.
func Sections(v SchemaVariant) []Section {
	var src []Section
	switch v {
	case SchemaComprehensive:
		src = comprehensiveSections
	case SchemaStrict:
		src = strictSections
	default:
		return nil
	}
	out := make([]Section, len(src))
	copy(out, src)
	return out
}

// SectionKeys returns the ordered section keys of a variant.
func SectionKeys(v SchemaVariant) []string {
	sections := Sections(v)
	keys := make([]string, len(sections))
	for i, s := range sections {
		keys[i] = s.Key
	}
	return keys
}

// SectionByHeading finds the section of variant v whose heading matches,
// ignoring case and surrounding whitespace. Headings of the other variant
// are accepted when they map to a key that v also defines.
func SectionByHeading(v SchemaVariant, heading string) (Section, bool) {
	heading = strings.ToLower(strings.TrimSpace(heading))
	own := Sections(v)
	for _, s := range own {
		if strings.ToLower(s.Heading) == heading {
			return s, true
		}
	}
	for _, other := range []SchemaVariant{SchemaComprehensive, SchemaStrict} {
		if other == v {
			continue
		}
		for _, s := range Sections(other) {
			if strings.ToLower(s.Heading) != heading {
				continue
			}
			for _, mine := range own {
				if mine.Key == s.Key {
					return mine, true
				}
			}
		}
	}
	return Section{}, false
}

// SectionSet maps every section key of one schema variant to its text.
// Every key is present from construction, defaulted to the empty string,
// and keys outside the schema can never be added.
type SectionSet struct {
	variant SchemaVariant
	values  map[string]string
}

// NewSectionSet returns a SectionSet with every key of v set to "".
func NewSectionSet(v SchemaVariant) (SectionSet, error) {
	if !v.IsValid() {
		return SectionSet{}, fmt.Errorf("%w: unknown schema variant %q", ErrInvalidInput, v)
	}
	values := make(map[string]string)
	for _, key := range SectionKeys(v) {
		values[key] = ""
	}
	return SectionSet{variant: v, values: values}, nil
}

// Variant returns the schema variant of the set.
func (s SectionSet) Variant() SchemaVariant {
	return s.variant
}

// Keys returns the section keys in schema order.
func (s SectionSet) Keys() []string {
	return SectionKeys(s.variant)
}

// Has reports whether key belongs to the schema.
func (s SectionSet) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the text of key, or "" when key is not part of the schema.
func (s SectionSet) Get(key string) string {
	return s.values[key]
}

// Set stores the text of key. Keys outside the schema are rejected with
// ErrSchemaViolation.
func (s SectionSet) Set(key, text string) error {
	if !s.Has(key) {
		return fmt.Errorf("%w: section %q is not part of the %s schema", ErrSchemaViolation, key, s.variant)
	}
	s.values[key] = text
	return nil
}

// Map returns a copy of the key to text mapping.
func (s SectionSet) Map() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// NonEmptyKeys returns the keys with non-blank text, in schema order.
func (s SectionSet) NonEmptyKeys() []string {
	var out []string
	for _, key := range s.Keys() {
		if strings.TrimSpace(s.values[key]) != "" {
			out = append(out, key)
		}
	}
	return out
}
