package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// Ensure RunHistoryService implements the interface.
var _ driving.RunHistoryService = (*RunHistoryService)(nil)

// DefaultHistoryLimit is used when a caller asks for a non-positive limit.
const DefaultHistoryLimit = 20

// RunHistoryService reads recorded runs.
type RunHistoryService struct {
	runs driven.RunStore
}

// NewRunHistoryService creates a run history service.
func NewRunHistoryService(runs driven.RunStore) *RunHistoryService {
	return &RunHistoryService{runs: runs}
}

// Recent returns up to limit runs, newest first.
func (s *RunHistoryService) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns a single run. A unique ID prefix of at least six characters
// is accepted as well, the way short commit hashes are.
func (s *RunHistoryService) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	run, err := s.runs.Get(ctx, id)
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || len(id) < 6 {
		return nil, err
	}

	all, listErr := s.runs.List(ctx, 0)
	if listErr != nil {
		return nil, fmt.Errorf("list runs: %w", listErr)
	}
	var match *domain.RunRecord
	for i := range all {
		if !strings.HasPrefix(all[i].ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: run id %q is ambiguous", domain.ErrInvalidInput, id)
		}
		match = &all[i]
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}
