package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads system prompts from user-editable files on disk,
// falling back to embedded defaults.
//
// Initialisation is lazy: the directory and default files are only created
// on the first Load, never in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
	embedded  bool
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptExplore: `You are a senior engineer reviewing an unfamiliar repository so that AI coding assistants can later work in it safely.

You are shown one slice of the repository at a time, together with the list of its directories and a short summary of what earlier slices revealed. Study the files shown and record concrete observations about:
- what the project does and who it serves
- languages, frameworks, tools and their versions
- directory layout, entry points and module responsibilities
- code style, naming, formatting and typing rules, with file paths as evidence
- error handling, logging, state and data access conventions
- how to build, lint, test and run the project (exact commands)
- testing practices, security guardrails, dependency and environment setup
- commit, branch and documentation conventions
- anything an assistant must never do here

Do not repeat what the summary already established unless the new files contradict it.

Reply with a single JSON object:
{"observations": "<markdown notes>", "follow_up_paths": ["<path>", ...]}

follow_up_paths lists up to three files or directories from the directory list that you need to see next to confirm a convention. Use an empty list when nothing else is needed.`,

	driven.PromptExploreStrict: `You are a senior engineer auditing a repository for the hard rules AI coding assistants must follow in it.

DO NOT summarize the application's purpose or architecture. You are shown one slice of the repository at a time, together with the list of its directories and a short summary of what earlier slices revealed. Focus exclusively on:
- strict code style and formatting rules, with concrete examples
- anti-patterns and things an assistant must never do
- security guardrails (secrets, PII, unsafe APIs)
- non-obvious quirks and gotchas an assistant could not easily grep for
- the exact commands an assistant is allowed to run

Reply with a single JSON object:
{"observations": "<markdown notes>", "follow_up_paths": ["<path>", ...]}

follow_up_paths lists up to three files or directories from the directory list that you need to see next. Use an empty list when nothing else is needed.`,

	driven.PromptSynthesize: `Compile the analysis notes below into a single, cohesive Markdown conventions document for this repository.

Merge overlapping observations, resolve contradictions in favour of the most specific evidence, and keep concrete file paths, commands and code snippets. Use clear headings and bullet points. Notes marked as partial coverage come from truncated files; do not over-generalise from them.

Every fenced code block must have both an opening and a closing triple-backtick line.

Reply with the Markdown document only.`,

	driven.PromptSynthesizeFold: `You maintain a Markdown conventions document for a repository. Fold the additional analysis notes into the current document.

Keep everything in the current document that the new notes do not contradict, add new facts under the right headings, and keep concrete file paths, commands and code snippets. Every fenced code block must have both an opening and a closing triple-backtick line.

Reply with the complete updated Markdown document only.`,

	driven.PromptExtract: `Extract individual AGENTS.md sections from a codebase conventions document.

Each section must be self-contained, well-written Markdown ready for inclusion in a vendor-neutral AGENTS.md file that any AI coding assistant can read. Use clear natural language with specific file paths, commands and code snippets as evidence. Do not include the section heading in its text.

CRITICAL: All fenced code blocks must have both an opening AND a closing triple-backtick line. Never leave a code block unclosed.

Reply with a single JSON object whose keys are exactly the section keys listed in the request.`,

	driven.PromptLessons: `Analyze the recent history of reverted commits and/or a failed pull request of a repository to deduce explicit anti-patterns, failed experiments and lessons learned, so that AI assistants do not repeat past mistakes.

Reply with a single JSON object:
{"lessons_learned": "<markdown bullet points explaining what failed and why>", "anti_patterns_and_restrictions": "<markdown bullet points of practices this codebase rejects>"}`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.agentsmd/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		promptDir = filepath.Join(dir, "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}, nil
}

// NewEmbeddedPromptStore returns a store that only serves the embedded
// defaults and never touches the filesystem.
func NewEmbeddedPromptStore() *PromptStore {
	return &PromptStore{cache: make(map[string]string), embedded: true}
}

// Load returns the prompt for the given name.
// User files take precedence over embedded defaults.
func (s *PromptStore) Load(name string) (string, error) {
	if s.embedded {
		return defaultPrompt(name)
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return defaultPrompt(name)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	prompt, err := s.loadFromFile(name)
	if err != nil || prompt == "" {
		return defaultPrompt(name)
	}

	// Double-check: keep the value of a concurrent load.
	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Names returns the names of all known prompts, sorted.
func Names() []string {
	names := make([]string, 0, len(defaultPrompts))
	for name := range defaultPrompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func defaultPrompt(name string) (string, error) {
	if prompt, ok := defaultPrompts[name]; ok {
		return prompt, nil
	}
	return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
}

// initialise creates the prompt directory, default files and README.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	content := `# agentsmd prompts

Each file is the system prompt of one reasoning call. The repository
content, notes or schema are sent separately as the user message, so the
files contain no placeholders.

## Files

- ` + "`explore.txt`" + ` - one exploration iteration (comprehensive schema)
- ` + "`explore_strict.txt`" + ` - one exploration iteration (strict schema)
- ` + "`synthesize.txt`" + ` - compile all notes into a conventions document
- ` + "`synthesize_fold.txt`" + ` - fold more notes into the running document
- ` + "`extract.txt`" + ` - map the document onto AGENTS.md sections
- ` + "`lessons.txt`" + ` - lessons learned from reverted commits and failed PRs

Exploration and lessons prompts must keep asking for the JSON reply shape
they describe. Delete a file to restore its default on the next run.
`
	return os.WriteFile(path, []byte(content), 0600)
}
