package driven

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// DocumentWriter persists rendered documents. It owns path construction;
// the pipeline only supplies the document and its repository name.
type DocumentWriter interface {
	// Write stores the document and returns the path written.
	Write(ctx context.Context, doc domain.RenderedDocument) (string, error)

	// ReadExisting returns the previously written document for a repository,
	// or domain.ErrNotFound when none exists.
	ReadExisting(ctx context.Context, repoName string) (string, error)
}
