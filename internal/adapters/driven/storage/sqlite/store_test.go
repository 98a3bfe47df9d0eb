package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testRun(id string, started time.Time) domain.RunRecord {
	return domain.RunRecord{
		ID:         id,
		Repository: "acme/widgets",
		Variant:    domain.SchemaComprehensive,
		State:      domain.RunPersisted,
		Degradations: []domain.Degradation{
			{Stage: domain.StageExtract, Message: "section missing"},
		},
		Iterations: 7,
		CharsShown: 12345,
		StopReason: domain.StopQueueExhausted,
		OutputPath: "out/widgets/AGENTS.md",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
	}
}

// ==================== Store Creation and Initialization Tests ====================

func TestNewStore_ErrorHandling(t *testing.T) {
	// Test with invalid path (should fail to create directory)
	_, err := NewStore("/invalid\x00path")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "creating data directory")
}

func TestNewStore_Success(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, dbFile), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_DirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	var name string
	err = store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "runs", name)
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), testRun("run-1", time.Now())))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	_, err = second.Get(context.Background(), "run-1")
	assert.NoError(t, err)
}

func TestStore_ImplementsInterface(t *testing.T) {
	var _ driven.RunStore = (*Store)(nil)
}

// ==================== Run Store Tests ====================

func TestStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := testRun("run-1", started)
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Repository, got.Repository)
	assert.Equal(t, run.Variant, got.Variant)
	assert.Equal(t, run.State, got.State)
	assert.Equal(t, run.Degradations, got.Degradations)
	assert.Equal(t, run.Iterations, got.Iterations)
	assert.Equal(t, run.CharsShown, got.CharsShown)
	assert.Equal(t, run.StopReason, got.StopReason)
	assert.Equal(t, run.OutputPath, got.OutputPath)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, run.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 90*time.Second, got.Duration())
}

func TestStore_SaveFailedRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := domain.RunRecord{
		ID:          "run-failed",
		Repository:  "acme/widgets",
		Variant:     domain.SchemaStrict,
		State:       domain.RunFailed,
		FailedStage: domain.StageSynthesize,
		Error:       "stage synthesize failed: provider error",
		StartedAt:   time.Now(),
	}
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-failed")
	require.NoError(t, err)
	assert.Equal(t, domain.StageSynthesize, got.FailedStage)
	assert.Equal(t, run.Error, got.Error)
	assert.Empty(t, got.Degradations)
	assert.True(t, got.FinishedAt.IsZero())
	assert.Empty(t, got.OutputPath)
	assert.False(t, got.Succeeded())
}

func TestStore_SaveReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", time.Now())
	run.State = domain.RunAnalyzed
	require.NoError(t, store.Save(ctx, run))

	run.State = domain.RunPersisted
	run.Iterations = 11
	require.NoError(t, store.Save(ctx, run))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPersisted, got.State)
	assert.Equal(t, 11, got.Iterations)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_SaveRequiresID(t *testing.T) {
	store := setupTestStore(t)

	err := store.Save(context.Background(), domain.RunRecord{Repository: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, testRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"run-4", "run-3", "run-2", "run-1", "run-0"}},
		{"limited", 2, []string{"run-4", "run-3"}},
		{"limit above count", 10, []string{"run-4", "run-3", "run-2", "run-1", "run-0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.List(ctx, tt.limit)
			require.NoError(t, err)

			ids := make([]string, len(runs))
			for i, r := range runs {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_List_Empty(t *testing.T) {
	store := setupTestStore(t)

	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	_, err = store.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}

func TestNullHelpers(t *testing.T) {
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.False(t, nullTime(time.Time{}).Valid)
	assert.True(t, nullTime(time.Now()).Valid)
}
