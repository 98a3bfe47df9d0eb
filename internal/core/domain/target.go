package domain

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// TargetKind says where a repository comes from.
type TargetKind string

// Repository target kinds.
const (
	TargetLocal  TargetKind = "local"
	TargetGitHub TargetKind = "github"
)

// RepoTarget identifies the repository a run documents.
type RepoTarget struct {
	// Kind is local or github.
	Kind TargetKind

	// Name is the repository identifier used for output naming.
	Name string

	// Dir is the local checkout. Set for local targets and for GitHub
	// targets once cloned; empty when materializing through the API.
	Dir string

	// URL is the GitHub repository URL.
	URL string

	// Owner and Repo are parsed from URL for GitHub targets.
	Owner string
	Repo  string
}

// IsRemote reports whether the target lives on GitHub.
func (t RepoTarget) IsRemote() bool {
	return t.Kind == TargetGitHub
}

// LocalTarget builds a target for a directory on disk.
// The name is the directory basename.
func LocalTarget(dir string) (RepoTarget, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return RepoTarget{}, fmt.Errorf("%w: resolve %q: %v", ErrInvalidInput, dir, err)
	}
	name := filepath.Base(filepath.Clean(abs))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return RepoTarget{}, fmt.Errorf("%w: cannot derive repository name from %q", ErrInvalidInput, dir)
	}
	return RepoTarget{Kind: TargetLocal, Name: name, Dir: abs}, nil
}

// GitHubTarget builds a target from a GitHub URL such as
// https://github.com/owner/repo or https://github.com/owner/repo.git.
// The name is the last path element with ".git" stripped.
func GitHubTarget(rawURL string) (RepoTarget, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return RepoTarget{}, fmt.Errorf("%w: invalid repository URL %q", ErrInvalidInput, rawURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoTarget{}, fmt.Errorf("%w: repository URL %q must name owner and repository", ErrInvalidInput, rawURL)
	}
	repo := strings.TrimSuffix(parts[len(parts)-1], ".git")
	return RepoTarget{
		Kind:  TargetGitHub,
		Name:  repo,
		URL:   rawURL,
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
	}, nil
}

// Slug returns the output directory name for a repository name:
// lower-cased with spaces replaced by dashes.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
