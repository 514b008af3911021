package tree

import (
	"context"
	"sort"
	"sync"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// fakeAdapter is an in-memory vault. Listings are sorted folders first and
// always return fresh node values.
type fakeAdapter struct {
	mu      sync.Mutex
	entries map[string]bool // path -> isDir
	lists   map[string]int
	mutates int

	listErr map[string]error
	mutErr  error

	// When gate is set, ListDirectory reports on entered and then waits for
	// gate to be closed.
	gate    chan struct{}
	entered chan string
}

func newFakeAdapter(paths ...string) *fakeAdapter {
	f := &fakeAdapter{
		entries: make(map[string]bool),
		lists:   make(map[string]int),
		listErr: make(map[string]error),
	}
	for _, p := range paths {
		f.add(p)
	}
	return f
}

// add registers p; a trailing "/" marks a folder. Missing parents are
// created as folders.
func (f *fakeAdapter) add(p string) {
	isDir := false
	if len(p) > 0 && p[len(p)-1] == '/' {
		isDir = true
		p = p[:len(p)-1]
	}
	for _, a := range model.Ancestors(p) {
		f.entries[a] = true
	}
	f.entries[p] = isDir
}

func (f *fakeAdapter) listCalls(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists[p]
}

func (f *fakeAdapter) totalListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.lists {
		n += c
	}
	return n
}

func (f *fakeAdapter) mutationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutates
}

func (f *fakeAdapter) ListDirectory(ctx context.Context, p string) ([]*model.TreeNode, error) {
	f.mu.Lock()
	f.lists[p]++
	gate, entered := f.gate, f.entered
	err := f.listErr[p]
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- p
		}
		<-gate
	}
	if err != nil {
		return nil, backend.Wrap("list", p, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if isDir, ok := f.entries[p]; p != "" && (!ok || !isDir) {
		return nil, backend.Wrap("list", p, backend.ErrNotFound)
	}
	var out []*model.TreeNode
	for path, isDir := range f.entries {
		if model.Parent(path) != p || path == "" {
			continue
		}
		out = append(out, &model.TreeNode{
			Name:        model.Base(path),
			Path:        path,
			IsDir:       isDir,
			HasChildren: isDir && f.hasChildrenLocked(path),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (f *fakeAdapter) hasChildrenLocked(p string) bool {
	for path := range f.entries {
		if model.Parent(path) == p && path != p {
			return true
		}
	}
	return false
}

func (f *fakeAdapter) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutates++
	return f.mutErr
}

func (f *fakeAdapter) CreateFile(ctx context.Context, parent, name string) (string, error) {
	if err := f.begin(); err != nil {
		return "", backend.Wrap("create_file", parent, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := model.Join(parent, name)
	if _, ok := f.entries[p]; ok {
		return "", backend.Wrap("create_file", p, backend.ErrExists)
	}
	f.entries[p] = false
	return p, nil
}

func (f *fakeAdapter) CreateFolder(ctx context.Context, parent, name string) error {
	if err := f.begin(); err != nil {
		return backend.Wrap("create_folder", parent, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := model.Join(parent, name)
	if _, ok := f.entries[p]; ok {
		return backend.Wrap("create_folder", p, backend.ErrExists)
	}
	f.entries[p] = true
	return nil
}

func (f *fakeAdapter) DeleteItem(ctx context.Context, p string) error {
	if err := f.begin(); err != nil {
		return backend.Wrap("delete", p, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[p]; !ok {
		return backend.Wrap("delete", p, backend.ErrNotFound)
	}
	for path := range f.entries {
		if model.IsSelfOrDescendant(path, p) {
			delete(f.entries, path)
		}
	}
	return nil
}

func (f *fakeAdapter) RenameItem(ctx context.Context, oldPath, newName string) (backend.RenameResult, error) {
	if err := f.begin(); err != nil {
		return backend.RenameResult{}, backend.Wrap("rename", oldPath, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	isDir, ok := f.entries[oldPath]
	if !ok {
		return backend.RenameResult{}, backend.Wrap("rename", oldPath, backend.ErrNotFound)
	}
	newPath := model.Join(model.Parent(oldPath), newName)
	f.relocateLocked(oldPath, newPath)
	return backend.RenameResult{NewPath: newPath, IsDir: isDir}, nil
}

func (f *fakeAdapter) MoveItem(ctx context.Context, source, targetDir string) (backend.MoveResult, error) {
	if err := f.begin(); err != nil {
		return backend.MoveResult{}, backend.Wrap("move", source, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[source]; !ok {
		return backend.MoveResult{}, backend.Wrap("move", source, backend.ErrNotFound)
	}
	newPath := model.Join(targetDir, model.Base(source))
	f.relocateLocked(source, newPath)
	return backend.MoveResult{NewPath: newPath}, nil
}

func (f *fakeAdapter) relocateLocked(oldPath, newPath string) {
	moved := make(map[string]bool)
	for path, isDir := range f.entries {
		if np, ok := model.RewritePrefix(path, oldPath, newPath); ok {
			delete(f.entries, path)
			moved[np] = isDir
		}
	}
	for k, v := range moved {
		f.entries[k] = v
	}
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// fakePins is an in-memory PinStore that also follows renames.
type fakePins struct {
	mu   sync.Mutex
	set  map[string]bool
	fail error
}

func newFakePins() *fakePins {
	return &fakePins{set: make(map[string]bool)}
}

func (p *fakePins) Pin(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.set[path] = true
	return nil
}

func (p *fakePins) Unpin(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	delete(p.set, path)
	return nil
}

func (p *fakePins) List(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.set))
	for k := range p.set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (p *fakePins) RemapPrefix(ctx context.Context, oldPrefix, newPrefix string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make(map[string]bool, len(p.set))
	for k := range p.set {
		np, _ := model.RewritePrefix(k, oldPrefix, newPrefix)
		next[np] = true
	}
	p.set = next
	return nil
}

func (p *fakePins) DeletePrefix(ctx context.Context, prefix string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.set {
		if model.IsSelfOrDescendant(k, prefix) {
			delete(p.set, k)
		}
	}
	return nil
}

func paths(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Node.Path
	}
	return out
}

func levels(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Level
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
