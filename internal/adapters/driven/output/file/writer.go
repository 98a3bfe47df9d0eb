// Package file persists rendered AGENTS.md documents on the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// Ensure Writer implements the interface.
var _ driven.DocumentWriter = (*Writer)(nil)

// Defaults for output placement.
const (
	DefaultDir = "projects"
	FileName   = "AGENTS.md"
)

// Writer stores documents at <dir>/<slug>/AGENTS.md.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir. Empty dir means DefaultDir.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{dir: dir}
}

// Dir returns the output root.
func (w *Writer) Dir() string {
	return w.dir
}

// PathFor returns the document path of a repository.
func (w *Writer) PathFor(repoName string) string {
	return filepath.Join(w.dir, domain.Slug(repoName), FileName)
}

// Write stores the document and returns the path written. A markdown
// code fence wrapping the whole document is removed first.
func (w *Writer) Write(ctx context.Context, doc domain.RenderedDocument) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if domain.Slug(doc.RepositoryName) == "" {
		return "", fmt.Errorf("%w: document has no repository name", domain.ErrInvalidInput)
	}

	path := w.PathFor(doc.RepositoryName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	// Write to a sibling temp file then rename so readers never see a partial document.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".agents-*.md")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(StripFence(doc.Content)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}

	logger.Debug("wrote %s (%d bytes)", path, len(doc.Content))
	return path, nil
}

// ReadExisting returns the stored document of a repository, or
// domain.ErrNotFound when none exists.
func (w *Writer) ReadExisting(ctx context.Context, repoName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(w.PathFor(repoName))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", repoName, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read existing document: %w", err)
	}
	return string(data), nil
}

// StripFence removes a ``` or ```markdown fence wrapping the whole
// content. Fenced blocks inside the document are left alone.
func StripFence(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return ""
		}
		switch strings.ToLower(strings.TrimSpace(s[3:nl])) {
		case "", "markdown", "md":
			s = s[nl+1:]
		}
	}
	// An unpaired trailing fence closes the wrapper.
	if strings.HasSuffix(s, "```") && strings.Count(s, "```")%2 == 1 {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	if s == "" {
		return ""
	}
	return s + "\n"
}
