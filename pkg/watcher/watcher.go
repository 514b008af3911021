// Package watcher notices external changes to the folders a vault tree has
// loaded and reports them, debounced, as vault-relative directory paths.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNotStarted     = errors.New("watcher not started")
)

// PathMapper converts between vault-relative and on-disk paths.
type PathMapper interface {
	OSPath(rel string) (string, error)
	RelPath(osPath string) (string, bool)
	Hidden(name string) bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithOnChange sets the callback invoked with the directories whose
// listings changed. It runs on the watcher's goroutine.
func WithOnChange(fn func(dirs []string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on watcher errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watcher tracks one fsnotify watch per loaded directory.
type Watcher struct {
	paths            PathMapper
	debounceDuration time.Duration
	onChange         func([]string)
	onError          func(error)

	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	watched map[string]string // rel -> os path
	pending map[string]bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a watcher. Call Start, then Sync with the loaded directories.
func New(paths PathMapper, opts ...Option) *Watcher {
	w := &Watcher{
		paths:            paths,
		debounceDuration: DefaultDebounceDuration,
		onChange:         func([]string) {},
		onError:          func(error) {},
		watched:          make(map[string]string),
		pending:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w
}

// Start begins receiving filesystem events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.fsWatcher = fsw
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	go w.loop(ctx, fsw)
	return nil
}

// Stop releases every watch. Pending notifications are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	w.cancel()
	fsw := w.fsWatcher
	w.fsWatcher = nil
	w.watched = make(map[string]string)
	w.pending = make(map[string]bool)
	done := w.done
	w.mu.Unlock()

	w.debouncer.Cancel()
	fsw.Close()
	<-done
}

// Sync makes the watched set equal to dirs. Directories that cannot be
// watched are reported through the error callback and skipped.
func (w *Watcher) Sync(dirs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}

	want := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		want[d] = true
	}
	for rel, osPath := range w.watched {
		if !want[rel] {
			_ = w.fsWatcher.Remove(osPath)
			delete(w.watched, rel)
		}
	}
	for _, rel := range dirs {
		if _, ok := w.watched[rel]; ok {
			continue
		}
		osPath, err := w.paths.OSPath(rel)
		if err != nil {
			continue
		}
		if err := w.fsWatcher.Add(osPath); err != nil {
			debug.Log("watcher: cannot watch %q: %v", rel, err)
			go w.onError(err)
			continue
		}
		w.watched[rel] = osPath
	}
	return nil
}

// Watched returns the watched directories, sorted.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watched))
	for rel := range w.watched {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// handle maps an event to the directory whose listing it changes.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if w.paths.Hidden(filepath.Base(event.Name)) {
		return
	}
	parent, ok := w.paths.RelPath(filepath.Dir(event.Name))
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if _, watched := w.watched[parent]; !watched {
		return
	}
	w.pending[parent] = true
	// A watched folder that vanished stops being a listing of its own.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if rel, ok := w.paths.RelPath(event.Name); ok {
			for d := range w.watched {
				if model.IsSelfOrDescendant(d, rel) {
					delete(w.watched, d)
				}
			}
		}
	}
	w.debouncer.Trigger(w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.started || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	dirs := make([]string, 0, len(w.pending))
	for d := range w.pending {
		dirs = append(dirs, d)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	sort.Strings(dirs)
	debug.Log("watcher: changed %v", dirs)
	w.onChange(dirs)
}
