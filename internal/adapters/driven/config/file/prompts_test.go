package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPromptStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
	_, statErr := os.Stat(filepath.Join(dir, "README.md"))
	assert.True(t, os.IsNotExist(statErr), "constructor must not write files")
}

func TestPromptStore_Load_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Load(driven.PromptExplore)
	require.NoError(t, err)

	for _, name := range driven.AllPromptNames() {
		_, err := os.Stat(filepath.Join(dir, name+".txt"))
		assert.NoError(t, err, "expected prompt file %s", name)
	}
	_, err = os.Stat(filepath.Join(dir, "README.md"))
	assert.NoError(t, err)
}

func TestPromptStore_EveryNameHasDefault(t *testing.T) {
	store := NewEmbeddedPromptStore()
	for _, name := range driven.AllPromptNames() {
		prompt, err := store.Load(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, prompt)
	}
	assert.ElementsMatch(t, driven.AllPromptNames(), Names())
}

func TestPromptStore_Load_ReturnsCustomContent(t *testing.T) {
	dir := t.TempDir()
	custom := "Only look at Go files."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "explore.txt"), []byte(custom+"\n"), 0600))

	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	prompt, err := store.Load(driven.PromptExplore)
	require.NoError(t, err)
	assert.Equal(t, custom, prompt)
}

func TestPromptStore_Load_FallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, _ = store.Load(driven.PromptLessons)
	require.NoError(t, os.Remove(filepath.Join(dir, "lessons.txt")))
	store.Reload()

	prompt, err := store.Load(driven.PromptLessons)
	require.NoError(t, err)
	assert.Contains(t, prompt, "lessons_learned")
}

func TestPromptStore_Load_UnknownPrompt(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nonexistent_prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "nonexistent_prompt")
}

func TestPromptStore_CacheAndReload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	first, err := store.Load(driven.PromptExtract)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract.txt"), []byte("modified"), 0600))

	cached, err := store.Load(driven.PromptExtract)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	store.Reload()
	fresh, err := store.Load(driven.PromptExtract)
	require.NoError(t, err)
	assert.Equal(t, "modified", fresh)
}

func TestPromptStore_Load_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	results := make(chan string, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			prompt, err := store.Load(driven.PromptSynthesize)
			if err == nil {
				results <- prompt
			}
		}()
	}
	wg.Wait()
	close(results)

	var first string
	count := 0
	for p := range results {
		if first == "" {
			first = p
		}
		assert.Equal(t, first, p)
		count++
	}
	assert.Equal(t, goroutines, count)
}
