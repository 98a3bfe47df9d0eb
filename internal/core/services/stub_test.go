package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// stubLLM is a scripted driven.LLMService. respond decides the reply of
// every Chat call; calls are recorded in order.
type stubLLM struct {
	mu      sync.Mutex
	respond func(ctx context.Context, messages []driven.ChatMessage) (string, error)
	calls   [][]driven.ChatMessage
	opts    []driven.ChatOptions
}

func newStubLLM(respond func(ctx context.Context, messages []driven.ChatMessage) (string, error)) *stubLLM {
	return &stubLLM{respond: respond}
}

// replying returns a stub that always answers with reply.
func replying(reply string) *stubLLM {
	return newStubLLM(func(context.Context, []driven.ChatMessage) (string, error) {
		return reply, nil
	})
}

func (s *stubLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, messages)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()
	return s.respond(ctx, messages)
}

func (s *stubLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	return s.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}}, driven.ChatOptions{})
}

func (s *stubLLM) ModelName() string          { return "stub" }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error               { return nil }

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// systemPrompts returns the system message of every call, in order.
func (s *stubLLM) systemPrompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, msgs := range s.calls {
		if len(msgs) > 0 && msgs[0].Role == driven.RoleSystem {
			out = append(out, msgs[0].Content)
		}
	}
	return out
}

// stubPrompts serves "prompt:<name>" for every known prompt.
type stubPrompts struct{}

func (stubPrompts) Load(name string) (string, error) {
	for _, n := range driven.AllPromptNames() {
		if n == name {
			return "prompt:" + name, nil
		}
	}
	return "", domain.ErrNotFound
}

func (stubPrompts) Reload() {}

var shownFileRe = regexp.MustCompile(`(?m)^=== (.+) ===$`)

// shownFiles returns the file paths an exploration message shows.
func shownFiles(messages []driven.ChatMessage) []string {
	user := messages[len(messages)-1].Content
	var out []string
	for _, m := range shownFileRe.FindAllStringSubmatch(user, -1) {
		out = append(out, m[1])
	}
	return out
}

// userMessage returns the last user message of a call.
func userMessage(messages []driven.ChatMessage) string {
	return messages[len(messages)-1].Content
}

// isExplore reports whether a call is an exploration iteration.
func isExplore(messages []driven.ChatMessage) bool {
	return strings.HasPrefix(messages[0].Content, "prompt:explore")
}

func mustTree(files map[string]string) *domain.SourceTree {
	list := make([]domain.SourceFile, 0, len(files))
	for path, content := range files {
		list = append(list, domain.SourceFile{Path: path, Content: content})
	}
	tree, err := domain.NewSourceTree(list)
	if err != nil {
		panic(err)
	}
	return tree
}

// testSettings returns limits small enough for unit tests.
func testSettings() domain.PipelineSettings {
	s := domain.DefaultPipelineSettings()
	s.MaxExplorationBudget = 10000
	s.MaxIterations = 20
	s.MaxChunkSize = 1000
	s.MaxWallClock = 30 * time.Second
	s.PerCallTimeout = 5 * time.Second
	s.RetryLimit = 2
	s.SynthesisBatchSize = 4000
	return s
}

type stubMaterializer struct {
	tree    *domain.SourceTree
	err     error
	targets []domain.RepoTarget
}

func (m *stubMaterializer) Materialize(_ context.Context, target domain.RepoTarget) (*domain.SourceTree, error) {
	m.targets = append(m.targets, target)
	if m.err != nil {
		return nil, m.err
	}
	return m.tree, nil
}

type stubWriter struct {
	mu       sync.Mutex
	written  []domain.RenderedDocument
	existing string
	readErr  error
	writeErr error
}

func (w *stubWriter) Write(_ context.Context, doc domain.RenderedDocument) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return "", w.writeErr
	}
	w.written = append(w.written, doc)
	return "out/" + domain.Slug(doc.RepositoryName) + "/AGENTS.md", nil
}

func (w *stubWriter) ReadExisting(context.Context, string) (string, error) {
	if w.readErr != nil {
		return "", w.readErr
	}
	if w.existing == "" {
		return "", domain.ErrNotFound
	}
	return w.existing, nil
}

type stubFetcher struct {
	dir     string
	err     error
	cleaned bool
}

func (f *stubFetcher) Fetch(context.Context, domain.RepoTarget) (string, func(), error) {
	if f.err != nil {
		return "", func() {}, f.err
	}
	return f.dir, func() { f.cleaned = true }, nil
}

type stubHistory struct {
	history string
	err     error
}

func (h stubHistory) RevertHistory(context.Context, string) (string, error) {
	return h.history, h.err
}

type stubPullRequests struct {
	report string
	err    error
	asked  int
}

func (p *stubPullRequests) PullRequestReport(_ context.Context, _, _ string, number int) (string, error) {
	p.asked = number
	return p.report, p.err
}
