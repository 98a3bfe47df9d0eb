package domain

import (
	"fmt"
	"sort"
	"strings"
)

// UnreadableMarker is the content placeholder shown to the reasoning service
// for files that were skipped because they are binary or oversized.
const UnreadableMarker = "[unreadable: binary or oversized file]"

// SourceFile is one file of a materialized repository.
type SourceFile struct {
	// Path is the slash-separated path relative to the repository root.
	Path string

	// Content is the file text. Empty when Unreadable is set.
	Content string

	// Unreadable marks binary or oversized files whose content was not loaded.
	Unreadable bool
}

// Size returns the number of characters this file contributes when shown.
func (f SourceFile) Size() int {
	if f.Unreadable {
		return len(UnreadableMarker)
	}
	return len(f.Content)
}

// Text returns the content shown for this file.
func (f SourceFile) Text() string {
	if f.Unreadable {
		return UnreadableMarker
	}
	return f.Content
}

// Dir returns the parent directory of the file, or "" for root-level files.
func (f SourceFile) Dir() string {
	idx := strings.LastIndex(f.Path, "/")
	if idx < 0 {
		return ""
	}
	return f.Path[:idx]
}

// SourceTree is an immutable, lexicographically ordered mapping from
// relative file path to file content. Paths are unique.
type SourceTree struct {
	files []SourceFile
	index map[string]int
}

// NewSourceTree builds a SourceTree from files in any order.
// Returns ErrInvalidInput for empty or duplicate paths.
func NewSourceTree(files []SourceFile) (*SourceTree, error) {
	sorted := make([]SourceFile, len(files))
	copy(sorted, files)
	for i := range sorted {
		sorted[i].Path = normalisePath(sorted[i].Path)
		if sorted[i].Path == "" {
			return nil, fmt.Errorf("%w: empty path in source tree", ErrInvalidInput)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	index := make(map[string]int, len(sorted))
	for i, f := range sorted {
		if _, dup := index[f.Path]; dup {
			return nil, fmt.Errorf("%w: duplicate path %q in source tree", ErrInvalidInput, f.Path)
		}
		index[f.Path] = i
	}

	return &SourceTree{files: sorted, index: index}, nil
}

// Len returns the number of files.
func (t *SourceTree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.files)
}

// Files returns a copy of all files in traversal order.
func (t *SourceTree) Files() []SourceFile {
	if t == nil {
		return nil
	}
	out := make([]SourceFile, len(t.files))
	copy(out, t.files)
	return out
}

// Paths returns all file paths in traversal order.
func (t *SourceTree) Paths() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.files))
	for i, f := range t.files {
		out[i] = f.Path
	}
	return out
}

// Get returns the file at path.
func (t *SourceTree) Get(path string) (SourceFile, bool) {
	if t == nil {
		return SourceFile{}, false
	}
	i, ok := t.index[normalisePath(path)]
	if !ok {
		return SourceFile{}, false
	}
	return t.files[i], true
}

// Under returns the files whose path lies within dir, in traversal order.
// An empty dir selects the whole tree.
func (t *SourceTree) Under(dir string) []SourceFile {
	if t == nil {
		return nil
	}
	dir = normalisePath(dir)
	if dir == "" {
		return t.Files()
	}
	prefix := dir + "/"
	start := sort.Search(len(t.files), func(i int) bool { return t.files[i].Path >= prefix })
	var out []SourceFile
	for i := start; i < len(t.files) && strings.HasPrefix(t.files[i].Path, prefix); i++ {
		out = append(out, t.files[i])
	}
	return out
}

// IsDir reports whether dir is a directory prefix of at least one file.
func (t *SourceTree) IsDir(dir string) bool {
	dir = normalisePath(dir)
	if dir == "" {
		return t.Len() > 0
	}
	return len(t.Under(dir)) > 0
}

// TotalSize returns the number of characters the whole tree would take to show.
func (t *SourceTree) TotalSize() int {
	if t == nil {
		return 0
	}
	total := 0
	for _, f := range t.files {
		total += f.Size()
	}
	return total
}

func normalisePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	return p
}
