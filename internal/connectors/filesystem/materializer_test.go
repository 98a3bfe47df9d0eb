package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestMaterializer_ImplementsInterface(t *testing.T) {
	var _ driven.TreeMaterializer = (*Materializer)(nil)
}

func TestMaterializer_Materialize(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.go":                  "package main",
		"README.md":                "# readme",
		"internal/app/app.go":      "package app",
		"internal/app/app_test.go": "package app",
		"web/src/index.ts":         "export {}",
		"image.png":                "not loaded",
		".env":                     "SECRET=1",
		".github/workflows/ci.yml": "on: push",
		"node_modules/x/index.js":  "ignored",
		"build/output.go":          "ignored",
		"generated/big.go":         "ignored by rule",
		"debug.log.txt":            "ignored by rule",
		".gitignore":               "generated/\n*.log.txt\n",
	})

	tree, err := NewMaterializer().Materialize(context.Background(), domain.RepoTarget{Name: "r", Dir: root})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"README.md",
		"internal/app/app.go",
		"internal/app/app_test.go",
		"main.go",
		"web/src/index.ts",
	}, tree.Paths())

	f, ok := tree.Get("main.go")
	require.True(t, ok)
	assert.Equal(t, "package main", f.Content)
	assert.False(t, f.Unreadable)
}

func TestMaterializer_UnreadableFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ok.go":    "package ok",
		"big.json": strings.Repeat("a", MaxFileChars),
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin.dat.c"), []byte{0xff, 0xfe, 0x00, 0x80}, 0644))

	tree, err := NewMaterializer().Materialize(context.Background(), domain.RepoTarget{Name: "r", Dir: root})
	require.NoError(t, err)
	require.Equal(t, 3, tree.Len())

	big, _ := tree.Get("big.json")
	assert.True(t, big.Unreadable)
	assert.Equal(t, domain.UnreadableMarker, big.Text())

	bin, _ := tree.Get("bin.dat.c")
	assert.True(t, bin.Unreadable)

	ok, _ := tree.Get("ok.go")
	assert.False(t, ok.Unreadable)
}

func TestMaterializer_EmptyDirectory(t *testing.T) {
	tree, err := NewMaterializer().Materialize(context.Background(), domain.RepoTarget{Name: "r", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}

func TestMaterializer_Errors(t *testing.T) {
	m := NewMaterializer()
	ctx := context.Background()

	_, err := m.Materialize(ctx, domain.RepoTarget{Name: "r"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = m.Materialize(ctx, domain.RepoTarget{Name: "r", Dir: "/non/existent/path"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")

	file := filepath.Join(t.TempDir(), "f.go")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = m.Materialize(ctx, domain.RepoTarget{Name: "r", Dir: file})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMaterializer_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.go": "package a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMaterializer().Materialize(ctx, domain.RepoTarget{Name: "r", Dir: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"dir/.git/config", true},
		{".config/.cache/data", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{".", false},
		{"..", false},
		{"path/./file", false},
		{"path/../file", false},
		{"", false},
		{"file.hidden", false},
		{"directory.name/file", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}

func TestNewSourceFile(t *testing.T) {
	f := NewSourceFile("a.go", []byte("package a\n"))
	assert.False(t, f.Unreadable)
	assert.Equal(t, "package a\n", f.Content)

	f = NewSourceFile("b.go", []byte{0xff, 0xfe})
	assert.True(t, f.Unreadable)
	assert.Empty(t, f.Content)

	f = NewSourceFile("c.txt", []byte(strings.Repeat("x", MaxFileChars)))
	assert.True(t, f.Unreadable)
}

func TestIsSourcePath(t *testing.T) {
	assert.True(t, IsSourcePath("cmd/main.go"))
	assert.True(t, IsSourcePath("README.MD"))
	assert.False(t, IsSourcePath("logo.png"))
	assert.False(t, IsSourcePath(".github/workflows/ci.yml"))
	assert.False(t, IsSourcePath("Makefile"))
}
