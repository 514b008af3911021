package ui

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/notetree/pkg/watcher"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is re-listing changed folders.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "watch", "refresh", "sync"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures including this one
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// DirsChangedMsg tells the UI which loaded folders changed on disk.
type DirsChangedMsg struct {
	Dirs []string
}

// WorkerErrorMsg is sent when the watcher or a refresh fails.
type WorkerErrorMsg struct {
	Err *WorkerError
}

// DirsRefreshedMsg is sent after changed folders were listed again.
type DirsRefreshedMsg struct {
	Dirs []string
}

// BackgroundWorker owns the filesystem watcher of a local vault. It watches
// exactly the folders the tree has loaded and turns external changes into
// targeted reloads.
type BackgroundWorker struct {
	ws            *workspace.Workspace
	debounceDelay time.Duration

	mu         sync.RWMutex
	state      WorkerState
	started    bool
	pending    map[string]bool
	lastError  *WorkerError
	errorCount int

	watcher *watcher.Watcher
	notify  chan struct{}
	errs    chan *WorkerError

	ctx    context.Context
	cancel context.CancelFunc
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	Workspace     *workspace.Workspace
	Paths         watcher.PathMapper // nil disables watching
	DebounceDelay time.Duration
}

// NewBackgroundWorker creates a new background worker.
func NewBackgroundWorker(cfg WorkerConfig) *BackgroundWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = watcher.DefaultDebounceDuration
	}

	w := &BackgroundWorker{
		ws:            cfg.Workspace,
		debounceDelay: cfg.DebounceDelay,
		state:         WorkerIdle,
		pending:       make(map[string]bool),
		notify:        make(chan struct{}, 1),
		errs:          make(chan *WorkerError, 1),
		ctx:           ctx,
		cancel:        cancel,
	}

	if cfg.Paths != nil {
		w.watcher = watcher.New(cfg.Paths,
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithOnChange(w.onChange),
			watcher.WithOnError(func(err error) {
				w.fail(&WorkerError{Phase: "watch", Cause: err, Time: time.Now()})
			}),
		)
	}
	return w
}

// Enabled reports whether the worker has anything to watch.
func (w *BackgroundWorker) Enabled() bool {
	return w != nil && w.watcher != nil
}

// Start begins watching the folders the tree has loaded so far.
// Start is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started || w.state == WorkerStopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	if err := w.watcher.Start(); err != nil {
		return err
	}
	return w.watcher.Sync(w.ws.Store().LoadedPaths())
}

// Stop halts the background worker and cleans up resources.
// Stop is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		w.watcher.Stop()
	}
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Watched returns the folders currently watched.
func (w *BackgroundWorker) Watched() []string {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Watched()
}

// onChange collects changed folders until the UI picks them up.
func (w *BackgroundWorker) onChange(dirs []string) {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	for _, d := range dirs {
		w.pending[d] = true
	}
	w.mu.Unlock()
	w.wake()
}

func (w *BackgroundWorker) wake() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *BackgroundWorker) takePending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.pending))
	for d := range w.pending {
		dirs = append(dirs, d)
	}
	w.pending = make(map[string]bool)
	sort.Strings(dirs)
	return dirs
}

// WaitForChanges returns a command delivering the next DirsChangedMsg or
// WorkerErrorMsg. The UI issues it again after each delivery.
func (w *BackgroundWorker) WaitForChanges() tea.Cmd {
	if !w.Enabled() {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case <-w.ctx.Done():
				return nil
			case werr := <-w.errs:
				return WorkerErrorMsg{Err: werr}
			case <-w.notify:
				if dirs := w.takePending(); len(dirs) > 0 {
					return DirsChangedMsg{Dirs: dirs}
				}
			}
		}
	}
}

// Refresh re-lists dirs and then watches whatever the tree has loaded
// afterwards, so new subfolders are covered and removed ones released.
func (w *BackgroundWorker) Refresh(dirs []string) tea.Cmd {
	return func() tea.Msg {
		w.mu.Lock()
		switch w.state {
		case WorkerStopped:
			w.mu.Unlock()
			return nil
		case WorkerProcessing:
			// Picked up again once the running refresh is done.
			for _, d := range dirs {
				w.pending[d] = true
			}
			w.mu.Unlock()
			w.wake()
			return nil
		}
		w.state = WorkerProcessing
		w.mu.Unlock()

		start := time.Now()
		werr := w.safeCompute("refresh", func() error {
			w.ws.RefreshDirs(w.ctx, dirs)
			return nil
		})
		if werr == nil {
			werr = w.safeCompute("sync", w.sync)
		}

		w.mu.Lock()
		if w.state == WorkerProcessing {
			w.state = WorkerIdle
		}
		w.mu.Unlock()
		w.recordError(werr)

		if werr != nil {
			log.Printf("warning: refreshing %v: %v", dirs, werr)
			return WorkerErrorMsg{Err: werr}
		}
		log.Printf("refreshed %d folder(s) in %v", len(dirs), time.Since(start))
		return DirsRefreshedMsg{Dirs: dirs}
	}
}

// SyncCmd updates the watched set to the folders currently loaded.
func (w *BackgroundWorker) SyncCmd() tea.Cmd {
	if !w.Enabled() {
		return nil
	}
	return func() tea.Msg {
		if werr := w.safeCompute("sync", w.sync); werr != nil {
			w.recordError(werr)
			return WorkerErrorMsg{Err: werr}
		}
		return nil
	}
}

func (w *BackgroundWorker) sync() error {
	w.mu.RLock()
	running := w.started && w.state != WorkerStopped
	w.mu.RUnlock()
	if w.watcher == nil || !running {
		return nil
	}
	return w.watcher.Sync(w.ws.Store().LoadedPaths())
}

func (w *BackgroundWorker) fail(err *WorkerError) {
	w.recordError(err)
	select {
	case w.errs <- err:
	default:
	}
}

// safeCompute executes fn and recovers from any panics.
// Returns a WorkerError if fn panics or fails, nil otherwise.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

// recordError tracks an error and updates error state.
func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastError returns the most recent error (nil if last operation succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}
