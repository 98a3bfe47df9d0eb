package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/agentsmd/internal/logger"
)

// DefaultDebounce is the quiet period before a batch of changes is emitted.
const DefaultDebounce = 2 * time.Second

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher is closed")

// Watcher reports source changes under a directory. Events are debounced
// and delivered as sorted batches of relative paths.
type Watcher struct {
	root     string
	debounce time.Duration

	mu      sync.Mutex
	closed  bool
	fsw     *fsnotify.Watcher
	matcher *IgnoreMatcher
}

// NewWatcher creates a watcher for root. A non-positive debounce means
// DefaultDebounce.
func NewWatcher(root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{root: root, debounce: debounce}
}

// Watch starts watching. The returned channel closes when ctx is done or
// the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) (<-chan []string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}
	if w.fsw != nil {
		return nil, fmt.Errorf("watcher already started")
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	matcher, err := LoadIgnoreMatcher(w.root)
	if err != nil {
		return nil, fmt.Errorf("read ignore rules: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w.fsw = fsw
	w.matcher = matcher

	if err := w.addTree(w.root); err != nil {
		fsw.Close()
		w.fsw = nil
		return nil, err
	}

	out := make(chan []string, 1)
	go w.loop(ctx, fsw, out)
	return out, nil
}

// addTree adds dir and every visible, non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel := w.rel(path)
			if isHidden(d.Name()) || w.matcher.Ignored(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- []string) {
	defer close(out)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if rel, ok := w.handleEvent(event); ok {
				pending[rel] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleEvent filters one fsnotify event and returns the changed
// relative path when it concerns a source file.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return "", false
	}

	rel := w.rel(event.Name)
	if rel == "." || strings.HasPrefix(rel, "..") || isHidden(rel) {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.matcher.Ignored(rel, true) {
				return "", false
			}
			// New directories are watched; their files arrive as their own events.
			w.mu.Lock()
			if w.fsw != nil {
				if err := w.addTree(event.Name); err != nil {
					logger.Warn("%v", err)
				}
			}
			w.mu.Unlock()
			return "", false
		}
	}

	if w.matcher.Ignored(rel, false) || !SourceExtensions[strings.ToLower(filepath.Ext(rel))] {
		return "", false
	}
	return rel, true
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.fsw != nil {
		err := w.fsw.Close()
		w.fsw = nil
		return err
	}
	return nil
}
