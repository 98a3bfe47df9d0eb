package driven

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

// TreeMaterializer turns a repository target into an in-memory SourceTree.
// The returned tree is owned by the calling run.
type TreeMaterializer interface {
	Materialize(ctx context.Context, target domain.RepoTarget) (*domain.SourceTree, error)
}

// RepositoryFetcher makes a remote repository available on local disk.
// The returned cleanup removes the checkout and is always safe to call.
type RepositoryFetcher interface {
	Fetch(ctx context.Context, target domain.RepoTarget) (dir string, cleanup func(), err error)
}
