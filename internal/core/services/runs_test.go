package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

func seedRuns(t *testing.T, ids ...string) *memory.RunStore {
	t.Helper()
	store := memory.NewRunStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range ids {
		require.NoError(t, store.Save(context.Background(), domain.RunRecord{
			ID:        id,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	return store
}

func TestRunHistoryService_Recent(t *testing.T) {
	service := NewRunHistoryService(seedRuns(t, "r1", "r2", "r3"))

	runs, err := service.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)

	runs, err = service.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRunHistoryService_Get(t *testing.T) {
	service := NewRunHistoryService(seedRuns(t,
		"0b7e5a1c-aaaa", "0b7e5a1c-bbbb", "f00dfeed-cccc"))
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		wantID  string
		wantErr error
	}{
		{name: "exact", id: "f00dfeed-cccc", wantID: "f00dfeed-cccc"},
		{name: "unique prefix", id: "f00dfe", wantID: "f00dfeed-cccc"},
		{name: "ambiguous prefix", id: "0b7e5a1c", wantErr: domain.ErrInvalidInput},
		{name: "short prefix", id: "f00", wantErr: domain.ErrNotFound},
		{name: "unknown", id: "deadbeef", wantErr: domain.ErrNotFound},
		{name: "empty", id: "  ", wantErr: domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := service.Get(ctx, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, run.ID)
		})
	}
}

type failingRunStore struct {
	*memory.RunStore
}

func (failingRunStore) List(context.Context, int) ([]domain.RunRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestRunHistoryService_Recent_StoreError(t *testing.T) {
	service := NewRunHistoryService(failingRunStore{memory.NewRunStore()})

	_, err := service.Recent(context.Background(), 5)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
}
