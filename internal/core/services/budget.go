package services

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// ExplorationBudget tracks how much of a SourceTree has been shown to the
// reasoning service. It is owned by one run and discarded at its end.
// All methods are safe for concurrent use; TryAcquire is the critical
// section that concurrent exploration iterations go through.
type ExplorationBudget struct {
	mu sync.Mutex

	maxChars      int
	maxIterations int
	maxChunkSize  int

	chars      int
	iterations int
	truncated  int
}

// NewExplorationBudget creates a budget from the pipeline limits.
func NewExplorationBudget(settings domain.PipelineSettings) *ExplorationBudget {
	return &ExplorationBudget{
		maxChars:      settings.MaxExplorationBudget,
		maxIterations: settings.MaxIterations,
		maxChunkSize:  settings.MaxChunkSize,
	}
}

// Admit reports whether showing chunk would keep both the character total
// and the iteration count within their ceilings. It does not commit anything.
func (b *ExplorationBudget) Admit(chunk domain.ExplorationChunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admitLocked(chunk)
}

func (b *ExplorationBudget) admitLocked(chunk domain.ExplorationChunk) bool {
	return b.iterations < b.maxIterations && b.chars+chunk.Size() <= b.maxChars
}

// Record commits chunk against the budget. It returns ErrBudgetExceeded,
// leaving the budget untouched, when the chunk was not admissible.
func (b *ExplorationBudget) Record(chunk domain.ExplorationChunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordLocked(chunk)
}

func (b *ExplorationBudget) recordLocked(chunk domain.ExplorationChunk) error {
	if !b.admitLocked(chunk) {
		return fmt.Errorf("%w: %d chars shown, %d requested, ceiling %d",
			domain.ErrBudgetExceeded, b.chars, chunk.Size(), b.maxChars)
	}
	b.chars += chunk.Size()
	b.iterations++
	if chunk.Truncated {
		b.truncated++
	}
	return nil
}

// TryAcquire admits and records chunk atomically.
func (b *ExplorationBudget) TryAcquire(chunk domain.ExplorationChunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recordLocked(chunk) == nil
}

// Exhausted reports whether no further iteration can be issued.
func (b *ExplorationBudget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.iterations >= b.maxIterations || b.chars >= b.maxChars
}

// Remaining returns the characters still available.
func (b *ExplorationBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chars >= b.maxChars {
		return 0
	}
	return b.maxChars - b.chars
}

// MaxChunkSize returns the per-call character ceiling.
func (b *ExplorationBudget) MaxChunkSize() int {
	return b.maxChunkSize
}

// Usage returns a snapshot of the budget.
func (b *ExplorationBudget) Usage() domain.BudgetUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.BudgetUsage{
		CharsShown:     b.chars,
		Iterations:     b.iterations,
		MaxChars:       b.maxChars,
		MaxIterations:  b.maxIterations,
		TruncatedFiles: b.truncated,
	}
}

// Truncate cuts a file to the maximum chunk size, keeping the head.
// The second result is true when the file was cut.
func (b *ExplorationBudget) Truncate(f domain.SourceFile) (domain.SourceFile, bool) {
	if f.Unreadable || len(f.Content) <= b.maxChunkSize {
		return f, false
	}
	f.Content = truncateHead(f.Content, b.maxChunkSize)
	return f, true
}

// truncateHead returns at most n bytes of s without splitting a rune.
func truncateHead(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// truncateTail returns at most n bytes from the end of s without splitting a rune.
func truncateTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
