package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

func TestRunStore_SaveAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	run := domain.RunRecord{
		ID:           "run-1",
		Repository:   "demo",
		State:        domain.RunPersisted,
		Degradations: []domain.Degradation{{Stage: domain.StageExtract, Message: "missing keys"}},
	}

	require.NoError(t, store.Save(ctx, run))
	run.Degradations[0].Message = "mutated"

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Repository)
	assert.Equal(t, "missing keys", got.Degradations[0].Message)
}

func TestRunStore_Save_RequiresID(t *testing.T) {
	err := NewRunStore().Save(context.Background(), domain.RunRecord{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRunStore_Get_NotFound(t *testing.T) {
	_, err := NewRunStore().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_List_NewestFirst(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, domain.RunRecord{ID: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
