package services

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

func chunkOf(sizes ...int) domain.ExplorationChunk {
	var c domain.ExplorationChunk
	for i, n := range sizes {
		c.Files = append(c.Files, domain.SourceFile{Path: string(rune('a' + i)), Content: strings.Repeat("x", n)})
	}
	return c
}

func budgetSettings(maxChars, maxIterations, maxChunk int) domain.PipelineSettings {
	s := domain.DefaultPipelineSettings()
	s.MaxExplorationBudget = maxChars
	s.MaxIterations = maxIterations
	s.MaxChunkSize = maxChunk
	return s
}

func TestExplorationBudget_TryAcquire(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(100, 3, 50))

	assert.True(t, b.TryAcquire(chunkOf(40)))
	assert.True(t, b.TryAcquire(chunkOf(30, 20)))
	assert.False(t, b.TryAcquire(chunkOf(11)), "would exceed the character ceiling")
	assert.True(t, b.TryAcquire(chunkOf(10)))

	usage := b.Usage()
	assert.Equal(t, 100, usage.CharsShown)
	assert.Equal(t, 3, usage.Iterations)
	assert.True(t, b.Exhausted())
	assert.Equal(t, 0, b.Remaining())
}

func TestExplorationBudget_IterationCeiling(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(1000, 2, 50))

	require.NoError(t, b.Record(chunkOf(1)))
	require.NoError(t, b.Record(chunkOf(1)))

	err := b.Record(chunkOf(1))
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	assert.False(t, b.Admit(chunkOf(0)))
	assert.True(t, b.Exhausted())
	assert.Equal(t, 998, b.Remaining())
}

func TestExplorationBudget_RecordRefusalLeavesBudgetUntouched(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(10, 5, 50))

	err := b.Record(chunkOf(11))

	require.Error(t, err)
	assert.Equal(t, domain.BudgetUsage{MaxChars: 10, MaxIterations: 5}, b.Usage())
}

func TestExplorationBudget_CountsTruncatedChunks(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(100, 5, 50))
	c := chunkOf(10)
	c.Truncated = true

	require.True(t, b.TryAcquire(c))

	assert.Equal(t, 1, b.Usage().TruncatedFiles)
}

func TestExplorationBudget_ConcurrentAcquireNeverOvershoots(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(1000, 1000, 50))
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.TryAcquire(chunkOf(7))
		}()
	}
	wg.Wait()

	usage := b.Usage()
	assert.LessOrEqual(t, usage.CharsShown, 1000)
	assert.Equal(t, 142, usage.Iterations)
}

func TestExplorationBudget_Truncate(t *testing.T) {
	b := NewExplorationBudget(budgetSettings(100, 5, 8))

	tests := []struct {
		name      string
		file      domain.SourceFile
		want      string
		truncated bool
	}{
		{"fits", domain.SourceFile{Path: "a", Content: "12345678"}, "12345678", false},
		{"cut", domain.SourceFile{Path: "a", Content: "1234567890"}, "12345678", true},
		{"rune safe", domain.SourceFile{Path: "a", Content: "1234567é9"}, "1234567", true},
		{"unreadable untouched", domain.SourceFile{Path: "a", Unreadable: true}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := b.Truncate(tt.file)
			assert.Equal(t, tt.want, got.Content)
			assert.Equal(t, tt.truncated, truncated)
			assert.True(t, utf8.ValidString(got.Content))
		})
	}
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "cdef", truncateTail("abcdef", 4))
	assert.Equal(t, "abc", truncateTail("abc", 10))
	assert.Equal(t, "", truncateTail("abc", 0))
	assert.Equal(t, "z", truncateTail("éz", 2))
}
