package driven

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// RunStore records pipeline runs for diagnostics.
// The pipeline writes to it but never reads from it.
type RunStore interface {
	// Save inserts or replaces a run record.
	Save(ctx context.Context, run domain.RunRecord) error

	// Get returns a run by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.RunRecord, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Close releases resources.
	Close() error
}
