package driving

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// RunHistoryService exposes recorded runs to the CLI and MCP surfaces.
type RunHistoryService interface {
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Get returns a single run by ID.
	Get(ctx context.Context, id string) (*domain.RunRecord, error)
}
