package github

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/agentsmd/internal/connectors/filesystem"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// Ensure TreeMaterializer implements the interface.
var _ driven.TreeMaterializer = (*TreeMaterializer)(nil)

// TreeMaterializer loads a repository through the REST tree and blob APIs
// without cloning it. It applies the same filters as the filesystem
// materializer.
type TreeMaterializer struct {
	client *Client
}

// NewTreeMaterializer creates an API-backed materializer.
func NewTreeMaterializer(client *Client) *TreeMaterializer {
	return &TreeMaterializer{client: client}
}

// Materialize fetches the default branch tree of target.Owner/target.Repo.
func (m *TreeMaterializer) Materialize(ctx context.Context, target domain.RepoTarget) (*domain.SourceTree, error) {
	if target.Owner == "" || target.Repo == "" {
		return nil, fmt.Errorf("%w: target %q has no GitHub owner/repo", domain.ErrInvalidInput, target.Name)
	}
	owner, name := target.Owner, target.Repo

	repo, err := m.client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "HEAD"
	}

	tree, err := m.client.GetTree(ctx, owner, name, branch)
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		logger.Warn("GitHub truncated the tree of %s/%s; some files are missing", owner, name)
	}

	matcher := m.loadIgnoreMatcher(ctx, owner, name, tree.Entries)

	var files []domain.SourceFile
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if !filesystem.IsSourcePath(path) || matcher.IgnoredPath(path) {
			continue
		}

		// Byte size bounds the character count from above.
		if entry.GetSize() >= filesystem.MaxFileChars*utf8.UTFMax {
			files = append(files, domain.SourceFile{Path: path, Unreadable: true})
			continue
		}

		data, err := m.client.GetBlob(ctx, owner, name, entry.GetSHA())
		if err != nil {
			if IsRateLimited(err) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("skipping %s: %v", path, err)
			continue
		}
		files = append(files, filesystem.NewSourceFile(path, data))
	}

	logger.Debug("materialized %d files from %s/%s@%s", len(files), owner, name, branch)
	return domain.NewSourceTree(files)
}

// loadIgnoreMatcher reads the root ignore files present in the tree.
// Unreadable ignore files are skipped.
func (m *TreeMaterializer) loadIgnoreMatcher(
	ctx context.Context, owner, name string, entries []*gh.TreeEntry,
) *filesystem.IgnoreMatcher {
	shas := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.GetType() == "blob" {
			shas[entry.GetPath()] = entry.GetSHA()
		}
	}

	var lines []string
	for _, file := range filesystem.IgnoreFiles {
		sha, ok := shas[file]
		if !ok {
			continue
		}
		data, err := m.client.GetBlob(ctx, owner, name, sha)
		if err != nil {
			logger.Warn("reading %s: %v", file, err)
			continue
		}
		sc := bufio.NewScanner(strings.NewReader(string(data)))
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
	}
	return filesystem.NewIgnoreMatcher(lines)
}
