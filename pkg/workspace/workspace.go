// Package workspace is the explicitly constructed application context of an
// open vault. It owns the tree store, the mutation coordinator, the viewport
// and the persisted UI state, and applies tree events to the visible list.
//
// The visible list and viewport belong to the caller's render loop and are
// not safe for concurrent use. Store and coordinator calls may run on any
// goroutine.
package workspace

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/model"
	"github.com/vanderheijden86/notetree/pkg/state"
	"github.com/vanderheijden86/notetree/pkg/tree"
)

// restoreParallelism bounds concurrent listings while restoring one level
// of expanded folders.
const restoreParallelism = 8

// Option configures a Workspace.
type Option func(*Workspace)

// WithWindow sets the viewport geometry.
func WithWindow(win tree.Window) Option {
	return func(w *Workspace) {
		w.window = win
	}
}

// WithScrollInterval sets the scroll throttle interval.
func WithScrollInterval(d time.Duration) Option {
	return func(w *Workspace) {
		w.scrollInterval = d
	}
}

// WithNoteExtension sets the extension enforced on new and renamed notes.
func WithNoteExtension(ext string) Option {
	return func(w *Workspace) {
		w.noteExt = ext
	}
}

// WithPins enables pinning.
func WithPins(p tree.PinStore) Option {
	return func(w *Workspace) {
		w.pins = p
	}
}

// WithStateFile persists expanded folders and the last selection to path.
func WithStateFile(path string) Option {
	return func(w *Workspace) {
		w.statePath = path
	}
}

// WithRootLabel names the vault root.
func WithRootLabel(label string) Option {
	return func(w *Workspace) {
		w.label = label
	}
}

// WithSink adds a sink that sees every tree event next to the workspace's
// own event channel.
func WithSink(s tree.Sink) Option {
	return func(w *Workspace) {
		w.extra = s
	}
}

// Workspace is an open vault.
type Workspace struct {
	adapter  backend.Adapter
	store    *tree.Store
	coord    *tree.Coordinator
	viewport *tree.Viewport
	throttle *tree.Throttler
	events   *tree.ChanSink

	window         tree.Window
	scrollInterval time.Duration
	noteExt        string
	pins           tree.PinStore
	statePath      string
	label          string
	extra          tree.Sink

	stateMu sync.Mutex
	state   *state.State
	writer  *state.Writer

	scrollMu      sync.Mutex
	pendingScroll int

	filterQuery string
	filterPaths []string
}

// New builds the workspace for a vault. Nothing is listed until Open.
func New(adapter backend.Adapter, opts ...Option) *Workspace {
	w := &Workspace{
		adapter: adapter,
		window:  tree.Window{ItemHeight: 1, BufferCount: tree.DefaultBufferCount},
		noteExt: tree.DefaultNoteExtension,
		label:   "vault",
		state:   state.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.statePath != "" {
		w.state = state.Load(w.statePath)
		w.writer = state.NewWriter(w.statePath)
	}

	w.events = tree.NewChanSink(256)
	var sink tree.Sink = w.events
	if w.extra != nil {
		sink = tree.Tee(w.events, w.extra)
	}
	w.store = tree.NewStore(adapter,
		tree.WithSink(sink),
		tree.WithRootLabel(w.label),
		tree.WithExpansionObserver(w.saveExpanded),
	)
	coordOpts := []tree.CoordinatorOption{tree.WithNoteExtension(w.noteExt)}
	if w.pins != nil {
		coordOpts = append(coordOpts, tree.WithPinStore(w.pins))
	}
	w.coord = tree.NewCoordinator(w.store, adapter, coordOpts...)
	w.viewport = tree.NewViewport(w.window)
	w.throttle = tree.NewThrottler(w.scrollInterval)
	return w
}

// Store returns the tree store.
func (w *Workspace) Store() *tree.Store { return w.store }

// Coordinator returns the mutation coordinator.
func (w *Workspace) Coordinator() *tree.Coordinator { return w.coord }

// Viewport returns the viewport over the visible list.
func (w *Workspace) Viewport() *tree.Viewport { return w.viewport }

// Events returns the tree event stream.
func (w *Workspace) Events() <-chan tree.Event { return w.events.Events() }

// Adapter returns the storage adapter.
func (w *Workspace) Adapter() backend.Adapter { return w.adapter }

// Label names the vault.
func (w *Workspace) Label() string { return w.label }

// Describe names the storage behind the vault.
func (w *Workspace) Describe() string {
	if d, ok := w.adapter.(backend.Describer); ok {
		return d.Describe()
	}
	return w.label
}

// Open lists the vault root, re-expands the folders saved last session and
// builds the visible list. Only a root listing failure is an error; saved
// folders that no longer exist are dropped.
func (w *Workspace) Open(ctx context.Context) error {
	defer debug.LogEnterExit("workspace.Open")()
	if _, err := w.store.LoadChildren(ctx, model.RootPath); err != nil {
		return err
	}
	w.restore(ctx)
	w.Refresh()
	return nil
}

// restore expands saved folders one depth level at a time so every parent
// is loaded before its children are looked up. Folders within a level load
// concurrently.
func (w *Workspace) restore(ctx context.Context) {
	w.stateMu.Lock()
	order := w.state.RestoreOrder()
	w.stateMu.Unlock()

	for len(order) > 0 {
		depth := model.Depth(order[0])
		n := 0
		for n < len(order) && model.Depth(order[n]) == depth {
			n++
		}
		level := order[:n]
		order = order[n:]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(restoreParallelism)
		for _, p := range level {
			node, ok := w.store.Lookup(p)
			parent := model.Parent(p)
			if !ok || !node.IsDir || (parent != model.RootPath && !w.store.IsExpanded(parent)) {
				debug.Log("workspace: dropping stale expanded folder %q", p)
				continue
			}
			g.Go(func() error {
				if err := w.store.Expand(gctx, p); err != nil {
					debug.Log("workspace: cannot restore %q: %v", p, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}

// Close flushes persisted state and stops pending scroll work.
func (w *Workspace) Close() {
	w.throttle.Cancel()
	if w.writer != nil {
		w.writer.Close()
	}
}

// Rows returns the current visible list.
func (w *Workspace) Rows() []tree.Row {
	return w.viewport.Rows()
}

// Refresh rebuilds the visible list from scratch.
func (w *Workspace) Refresh() {
	snap := w.store.Snapshot()
	if w.Filtering() {
		w.viewport.SetRows(tree.FlattenFiltered(snap, w.filterPaths))
		return
	}
	w.viewport.SetRows(tree.Flatten(snap))
}

// Apply folds one tree event into the visible list and the persisted
// references. It returns a user-facing message for events worth showing,
// or "".
func (w *Workspace) Apply(ev tree.Event) string {
	switch e := ev.(type) {
	case tree.StructureChanged:
		if w.Filtering() {
			w.refilter()
			return ""
		}
		w.viewport.SetRows(tree.ReflattenAll(w.viewport.Rows(), w.store.Snapshot(), e.Paths))
	case tree.LoadFailed:
		return tree.UserMessage(e.Err)
	case tree.ItemRenamed:
		w.remap(e.OldPath, e.NewPath)
	case tree.ItemMoved:
		w.remap(e.OldPath, e.NewPath)
	case tree.ItemDeleted:
		w.forget(e.Path)
	case tree.PinsChanged:
	}
	return ""
}

// Select records the row the cursor is on as the last selection.
func (w *Workspace) Select(row tree.Row) {
	w.stateMu.Lock()
	if row.Node.IsDir {
		w.state.LastFolder = row.Node.Path
	} else {
		w.state.LastFile = row.Node.Path
		w.state.LastFolder = model.Parent(row.Node.Path)
	}
	w.stateMu.Unlock()
	w.persist()
}

// LastSelection returns the path to put the cursor on after Open: the last
// file if visible, else the last folder if visible, else "".
func (w *Workspace) LastSelection() string {
	w.stateMu.Lock()
	file, folder := w.state.LastFile, w.state.LastFolder
	w.stateMu.Unlock()
	for _, p := range []string{file, folder} {
		if p != "" && w.IndexOf(p) >= 0 {
			return p
		}
	}
	return ""
}

// IndexOf returns the visible row index of p, or -1.
func (w *Workspace) IndexOf(p string) int {
	for i, r := range w.viewport.Rows() {
		if r.Node.Path == p {
			return i
		}
	}
	return -1
}

// State returns a copy of the persisted state.
func (w *Workspace) State() *state.State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state.Clone()
}

func (w *Workspace) saveExpanded(expanded []string) {
	w.stateMu.Lock()
	w.state.ExpandedFolders = append([]string(nil), expanded...)
	w.stateMu.Unlock()
	w.persist()
}

func (w *Workspace) persist() {
	if w.writer == nil {
		return
	}
	w.stateMu.Lock()
	st := w.state.Clone()
	w.stateMu.Unlock()
	w.writer.Save(st)
}

func (w *Workspace) remap(oldPath, newPath string) {
	w.stateMu.Lock()
	w.state.LastFile, _ = model.RewritePrefix(w.state.LastFile, oldPath, newPath)
	w.state.LastFolder, _ = model.RewritePrefix(w.state.LastFolder, oldPath, newPath)
	w.stateMu.Unlock()
	w.persist()

	for i, p := range w.filterPaths {
		w.filterPaths[i], _ = model.RewritePrefix(p, oldPath, newPath)
	}
}

func (w *Workspace) forget(p string) {
	w.stateMu.Lock()
	if w.state.LastFile != "" && model.IsSelfOrDescendant(w.state.LastFile, p) {
		w.state.LastFile = ""
	}
	if w.state.LastFolder != "" && model.IsSelfOrDescendant(w.state.LastFolder, p) {
		w.state.LastFolder = model.Parent(p)
	}
	w.stateMu.Unlock()
	w.persist()

	kept := w.filterPaths[:0]
	for _, fp := range w.filterPaths {
		if !model.IsSelfOrDescendant(fp, p) {
			kept = append(kept, fp)
		}
	}
	w.filterPaths = kept
}

// CreateNote creates a note and makes sure its parent is listed so the new
// row becomes visible.
func (w *Workspace) CreateNote(ctx context.Context, parent, name string) (tree.CreateResult, error) {
	res, err := w.coord.CreateNote(ctx, parent, name)
	if err == nil {
		w.ensureLoaded(ctx, res.Parent)
	}
	return res, err
}

// CreateFolder is CreateNote for folders.
func (w *Workspace) CreateFolder(ctx context.Context, parent, name string) (tree.CreateResult, error) {
	res, err := w.coord.CreateFolder(ctx, parent, name)
	if err == nil {
		w.ensureLoaded(ctx, res.Parent)
	}
	return res, err
}

// Move moves an entry and lists the target folder if it was never opened.
func (w *Workspace) Move(ctx context.Context, source, targetDir string) (tree.Relocation, error) {
	res, err := w.coord.Move(ctx, source, targetDir)
	if err == nil {
		w.ensureLoaded(ctx, model.Parent(res.NewPath))
	}
	return res, err
}

// Rename renames an entry.
func (w *Workspace) Rename(ctx context.Context, p, newName string) (tree.Relocation, error) {
	return w.coord.Rename(ctx, p, newName)
}

// Delete removes an entry after confirm approves it.
func (w *Workspace) Delete(ctx context.Context, p string, confirm tree.Confirmer) (tree.DeleteResult, error) {
	return w.coord.Delete(ctx, p, confirm)
}

// ensureLoaded lists dir if a patch left it expanded without a listing.
// A failure surfaces as a LoadFailed event.
func (w *Workspace) ensureLoaded(ctx context.Context, dir string) {
	if w.store.IsLoaded(dir) {
		return
	}
	if _, err := w.store.LoadChildren(ctx, dir); err != nil {
		debug.Log("workspace: listing %q after mutation: %v", dir, err)
	}
}

// RefreshDirs re-lists directories changed outside the app. Directories no
// longer cached are skipped.
func (w *Workspace) RefreshDirs(ctx context.Context, dirs []string) {
	for _, d := range dirs {
		if !w.store.IsLoaded(d) {
			continue
		}
		if _, err := w.store.Reload(ctx, d); err != nil {
			debug.Log("workspace: reload %q: %v", d, err)
		}
	}
}

// Filtering reports whether filter mode is on.
func (w *Workspace) Filtering() bool {
	return w.filterQuery != ""
}

// FilterQuery returns the active filter text.
func (w *Workspace) FilterQuery() string {
	return w.filterQuery
}

// Filter switches to filter mode showing loaded entries whose name or path
// contains query, case-insensitively. An empty query leaves filter mode.
// It returns the number of matching entries.
func (w *Workspace) Filter(query string) int {
	w.filterQuery = strings.TrimSpace(query)
	if w.filterQuery == "" {
		w.filterPaths = nil
		w.Refresh()
		return 0
	}
	w.refilter()
	return len(w.filterPaths)
}

// ClearFilter leaves filter mode.
func (w *Workspace) ClearFilter() {
	w.Filter("")
}

func (w *Workspace) refilter() {
	snap := w.store.Snapshot()
	needle := strings.ToLower(w.filterQuery)
	var matches []string
	for _, dir := range snap.Keys() {
		kids, _ := snap.Children(dir)
		for _, n := range kids {
			if strings.Contains(strings.ToLower(n.Path), needle) {
				matches = append(matches, n.Path)
			}
		}
	}
	sort.Strings(matches)
	w.filterPaths = matches
	w.viewport.SetRows(tree.FlattenFiltered(snap, matches))
}

// RequestScroll accumulates a scroll delta and schedules notify on the
// trailing edge of the throttle interval. The caller applies the delta
// with ApplyScroll when notified.
func (w *Workspace) RequestScroll(delta int, notify func()) {
	w.scrollMu.Lock()
	w.pendingScroll += delta
	w.scrollMu.Unlock()
	w.throttle.Trigger(notify)
}

// ApplyScroll applies the accumulated scroll delta to the viewport.
func (w *Workspace) ApplyScroll() {
	w.scrollMu.Lock()
	d := w.pendingScroll
	w.pendingScroll = 0
	w.scrollMu.Unlock()
	if d != 0 {
		w.viewport.ScrollBy(d)
	}
}
