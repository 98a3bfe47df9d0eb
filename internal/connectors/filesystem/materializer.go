// Package filesystem materializes local repositories into source trees and
// watches them for changes.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// MaxFileChars is the size at which a file is shown as unreadable.
const MaxFileChars = 500000

// SourceExtensions are the file extensions loaded into a tree.
var SourceExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".vue": true,
	".java": true, ".md": true, ".json": true, ".yml": true, ".yaml": true, ".txt": true,
	".html": true, ".css": true, ".scss": true, ".less": true, ".c": true, ".cpp": true,
	".h": true, ".hpp": true, ".cs": true, ".go": true, ".rb": true, ".php": true,
	".rs": true, ".sh": true, ".swift": true, ".kt": true, ".sql": true, ".xml": true,
	".toml": true, ".ini": true, ".dart": true, ".scala": true, ".r": true, ".m": true,
	".pl": true,
}

// Ensure Materializer implements the interface.
var _ driven.TreeMaterializer = (*Materializer)(nil)

// Materializer loads a local directory into a SourceTree.
type Materializer struct{}

// NewMaterializer creates a filesystem materializer.
func NewMaterializer() *Materializer {
	return &Materializer{}
}

// Materialize walks target.Dir. Hidden entries, ignored paths and files
// without a source extension are skipped; binary and oversized files are
// kept as unreadable entries.
func (m *Materializer) Materialize(ctx context.Context, target domain.RepoTarget) (*domain.SourceTree, error) {
	root := target.Dir
	if root == "" {
		return nil, fmt.Errorf("%w: target %q has no local directory", domain.ErrInvalidInput, target.Name)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	matcher, err := LoadIgnoreMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("read ignore rules: %w", err)
	}

	var files []domain.SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return walkErr
		}
		if walkErr != nil {
			logger.Warn("skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if isHidden(d.Name()) || matcher.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !SourceExtensions[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		file, err := readSourceFile(path, rel)
		if err != nil {
			logger.Warn("skipping %s: %v", rel, err)
			return nil
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	logger.Debug("materialized %d files from %s", len(files), root)
	return domain.NewSourceTree(files)
}

// readSourceFile loads one file, marking it unreadable when it is too
// large or not valid UTF-8.
func readSourceFile(path, rel string) (domain.SourceFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.SourceFile{}, err
	}
	// Byte size bounds the character count from above; skip reading huge files.
	if info.Size() >= int64(MaxFileChars)*utf8.UTFMax {
		logger.Debug("%s is too large (%d bytes)", rel, info.Size())
		return domain.SourceFile{Path: rel, Unreadable: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceFile{}, err
	}
	return NewSourceFile(rel, data), nil
}

// NewSourceFile classifies loaded file bytes, marking them unreadable when
// they are not valid UTF-8 or reach MaxFileChars characters.
func NewSourceFile(rel string, data []byte) domain.SourceFile {
	if !utf8.Valid(data) {
		logger.Debug("%s is not valid UTF-8", rel)
		return domain.SourceFile{Path: rel, Unreadable: true}
	}
	if n := utf8.RuneCount(data); n >= MaxFileChars {
		logger.Debug("%s is too large (%d chars)", rel, n)
		return domain.SourceFile{Path: rel, Unreadable: true}
	}
	return domain.SourceFile{Path: rel, Content: string(data)}
}

// IsSourcePath reports whether a slash-separated path should be loaded:
// no hidden element and a known source extension.
func IsSourcePath(rel string) bool {
	return !isHidden(rel) && SourceExtensions[strings.ToLower(filepath.Ext(rel))]
}

// isHidden reports whether a path has a dot-prefixed element.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
