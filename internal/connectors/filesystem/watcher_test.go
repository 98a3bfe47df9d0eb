package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 50 * time.Millisecond

func waitBatch(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for change batch")
		return nil
	}
}

func TestWatcher_ReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.go": "package main"})

	w := NewWatcher(root, testDebounce)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main // edited"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.go"), []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.bin"), []byte("x"), 0644))

	seen := map[string]bool{}
	for !seen["main.go"] || !seen["util.go"] {
		for _, p := range waitBatch(t, ch) {
			seen[p] = true
		}
	}
	assert.False(t, seen["notes.bin"])
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	w := NewWatcher(root, testDebounce)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg2"), 0755))
	time.Sleep(testDebounce)
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg2", "a.go"), []byte("package pkg2"), 0644))

	for {
		batch := waitBatch(t, ch)
		if assert.NotEmpty(t, batch) && batch[len(batch)-1] == "pkg2/a.go" {
			return
		}
	}
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	w := NewWatcher(t.TempDir(), testDebounce)
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := w.Watch(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestWatcher_Errors(t *testing.T) {
	t.Run("non-existent root", func(t *testing.T) {
		w := NewWatcher("/non/existent/path", 0)
		ch, err := w.Watch(context.Background())
		require.Error(t, err)
		assert.Nil(t, ch)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closed watcher", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), 0)
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		_, err := w.Watch(context.Background())
		assert.ErrorIs(t, err, ErrWatcherClosed)
	})

	t.Run("started twice", func(t *testing.T) {
		w := NewWatcher(t.TempDir(), 0)
		defer w.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := w.Watch(ctx)
		require.NoError(t, err)
		_, err = w.Watch(ctx)
		assert.Error(t, err)
	})
}

func TestNewWatcher_DefaultDebounce(t *testing.T) {
	assert.Equal(t, DefaultDebounce, NewWatcher("x", 0).debounce)
	assert.Equal(t, time.Second, NewWatcher("x", time.Second).debounce)
}

func TestWatcher_HandleEvent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.go":       "package a",
		"dist/b.js":  "x",
		".hidden.go": "package h",
	})
	w := NewWatcher(root, testDebounce)
	w.matcher = NewIgnoreMatcher(nil)

	tests := []struct {
		name   string
		file   string
		op     fsnotify.Op
		want   string
		wantOK bool
	}{
		{"write source", "a.go", fsnotify.Write, "a.go", true},
		{"remove source", "gone.go", fsnotify.Remove, "gone.go", true},
		{"rename source", "old.ts", fsnotify.Rename, "old.ts", true},
		{"chmod ignored", "a.go", fsnotify.Chmod, "", false},
		{"hidden file", ".hidden.go", fsnotify.Write, "", false},
		{"non-source extension", "a.png", fsnotify.Create, "", false},
		{"root itself", ".", fsnotify.Write, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.handleEvent(fsnotify.Event{Name: filepath.Join(root, tt.file), Op: tt.op})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
