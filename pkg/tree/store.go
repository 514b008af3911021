// Package tree is the lazily loaded, windowed file tree engine.
//
// Store owns the children cache and the expansion set. Everything else reads
// immutable snapshots: Flatten turns a snapshot into display rows, Window
// picks the slice of rows to materialize, and Coordinator applies mutations
// through the backend before patching the store.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// maxRelist bounds how often a listing is repeated when a local patch lands
// on the same directory while the listing is in flight.
const maxRelist = 2

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSink sets where the store reports load results.
func WithSink(s Sink) StoreOption {
	return func(st *Store) {
		if s != nil {
			st.sink = s
		}
	}
}

// WithRootLabel sets the display name of the synthetic root node.
func WithRootLabel(label string) StoreOption {
	return func(st *Store) {
		st.root = model.Root(label)
	}
}

// WithExpansionObserver registers fn to be called with the sorted expansion
// set after every change to it. fn runs on the caller's goroutine after the
// store lock is released and must not block.
func WithExpansionObserver(fn func(expanded []string)) StoreOption {
	return func(st *Store) {
		st.onExpansion = fn
	}
}

// Store is the single writer of the children cache and the expansion set.
//
// A key in children means the directory has been listed; an empty slice is a
// loaded, empty directory. Cached slices are never modified in place, so a
// Snapshot can share them without copying.
type Store struct {
	adapter     backend.Adapter
	sink        Sink
	root        *model.TreeNode
	onExpansion func([]string)

	group singleflight.Group

	mu       sync.Mutex
	children map[string][]*model.TreeNode
	expanded map[string]struct{}
	inflight map[string]bool   // paths with a listing flight running
	gen      map[string]uint64 // bumped when a patch supersedes an in-flight listing
	flights  uint64            // listing flights started
}

// NewStore creates a store reading directories through adapter.
func NewStore(adapter backend.Adapter, opts ...StoreOption) *Store {
	s := &Store{
		adapter:  adapter,
		sink:     discard{},
		root:     model.Root("vault"),
		children: make(map[string][]*model.TreeNode),
		expanded: make(map[string]struct{}),
		inflight: make(map[string]bool),
		gen:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the synthetic root node.
func (s *Store) Root() *model.TreeNode {
	return s.root
}

// LoadChildren returns the children of the directory at p, listing it
// through the backend on a cache miss. Concurrent calls for the same path
// share a single backend call. If ctx ends first the call returns ctx.Err()
// but the listing still completes and is cached.
func (s *Store) LoadChildren(ctx context.Context, p string) ([]*model.TreeNode, error) {
	s.mu.Lock()
	if err := s.checkDirLocked(OpList, p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if nodes, ok := s.children[p]; ok {
		s.mu.Unlock()
		metrics.RecordCacheHit()
		return nodes, nil
	}
	ch := s.joinLocked(ctx, p)
	s.mu.Unlock()
	return s.await(ctx, ch)
}

// Reload lists p again even if it is cached, replacing the cached children.
// Subdirectories that disappeared are dropped from the cache and the
// expansion set. Unchanged children keep their node pointers.
func (s *Store) Reload(ctx context.Context, p string) ([]*model.TreeNode, error) {
	s.mu.Lock()
	if err := s.checkDirLocked(OpList, p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ch := s.joinLocked(ctx, p)
	s.mu.Unlock()
	return s.await(ctx, ch)
}

// joinLocked registers the caller's interest in a listing of p and returns
// the channel its result arrives on. The first caller starts a flight; later
// callers share it. The flight clears itself under s.mu, so a caller that
// saw it in flight here is guaranteed to join it.
func (s *Store) joinLocked(ctx context.Context, p string) <-chan singleflight.Result {
	if s.inflight[p] {
		metrics.RecordSharedLoad()
		debug.Log("tree: joining in-flight listing of %q", p)
	} else {
		s.inflight[p] = true
		s.flights++
		metrics.RecordCacheMiss()
		debug.Log("tree: listing %q (flight %d)", p, s.flights)
	}
	return s.group.DoChan(p, func() (any, error) {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, p)
			s.group.Forget(p)
			s.mu.Unlock()
		}()
		return s.list(context.WithoutCancel(ctx), p)
	})
}

// await waits for a flight started or joined by joinLocked.
func (s *Store) await(ctx context.Context, ch <-chan singleflight.Result) ([]*model.TreeNode, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*model.TreeNode), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// list performs the backend call and stores the result. It runs once per
// flight regardless of how many callers are waiting.
func (s *Store) list(ctx context.Context, p string) ([]*model.TreeNode, error) {
	for attempt := 0; ; attempt++ {
		s.mu.Lock()
		startGen := s.gen[p]
		s.mu.Unlock()

		start := time.Now()
		nodes, err := s.adapter.ListDirectory(ctx, p)
		metrics.RecordDirectoryLoad(time.Since(start), err == nil)
		debug.LogTiming(fmt.Sprintf("tree: list %q", p), time.Since(start))
		if err != nil {
			lerr := &ListingError{Path: p, Err: backend.Wrap("list", p, err)}
			s.sink.Emit(LoadFailed{Path: p, Err: lerr})
			return nil, lerr
		}
		nodes = sanitize(p, nodes)

		s.mu.Lock()
		if s.gen[p] != startGen && attempt < maxRelist {
			s.mu.Unlock()
			debug.Log("tree: listing of %q superseded by a local change, listing again", p)
			continue
		}
		if s.checkDirLocked(OpList, p) != nil {
			// Renamed, moved or deleted while loading. Nothing to cache under
			// this key any more.
			s.mu.Unlock()
			return nodes, nil
		}
		changed := false
		if prev, ok := s.children[p]; ok {
			nodes = reuseNodes(prev, nodes)
			changed = s.pruneLocked(prev, nodes)
		}
		s.children[p] = nodes
		s.setHasChildrenLocked(p, len(nodes) > 0)
		_, visible := s.expanded[p]
		visible = visible || p == model.RootPath
		s.mu.Unlock()

		if changed {
			s.notifyExpansion()
		}
		if visible {
			s.sink.Emit(StructureChanged{Paths: []string{p}})
		}
		return nodes, nil
	}
}

// sanitize drops entries that do not belong directly under p, and repeated
// paths, keeping the backend's order.
func sanitize(p string, nodes []*model.TreeNode) []*model.TreeNode {
	out := make([]*model.TreeNode, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if err := n.Validate(); err != nil || n.Path == model.RootPath || model.Parent(n.Path) != p {
			debug.Log("tree: dropping malformed entry under %q: %+v", p, n)
			continue
		}
		if _, dup := seen[n.Path]; dup {
			continue
		}
		seen[n.Path] = struct{}{}
		out = append(out, n)
	}
	return out
}

// reuseNodes keeps the previous pointer for entries that did not change so
// rows built from them compare equal by identity.
func reuseNodes(prev, next []*model.TreeNode) []*model.TreeNode {
	byPath := make(map[string]*model.TreeNode, len(prev))
	for _, n := range prev {
		byPath[n.Path] = n
	}
	for i, n := range next {
		if old, ok := byPath[n.Path]; ok && *old == *n {
			next[i] = old
		}
	}
	return next
}

// pruneLocked drops cache and expansion state for directories present in
// prev but missing from next. It reports whether the expansion set changed.
func (s *Store) pruneLocked(prev, next []*model.TreeNode) bool {
	keep := make(map[string]struct{}, len(next))
	for _, n := range next {
		if n.IsDir {
			keep[n.Path] = struct{}{}
		}
	}
	changed := false
	for _, n := range prev {
		if !n.IsDir {
			continue
		}
		if _, ok := keep[n.Path]; ok {
			continue
		}
		if s.dropSubtreeLocked(n.Path) {
			changed = true
		}
	}
	return changed
}

// ToggleExpand collapses an expanded directory or expands a collapsed one,
// listing it if needed. A failed listing rolls the expansion back. A toggle
// that arrives while the same directory is already loading and expanded
// joins that load instead of collapsing it.
func (s *Store) ToggleExpand(ctx context.Context, p string) error {
	s.mu.Lock()
	if err := s.checkDirLocked(OpExpand, p); err != nil {
		s.mu.Unlock()
		return err
	}
	_, isExpanded := s.expanded[p]
	switch {
	case isExpanded && s.inflight[p]:
		ch := s.joinLocked(ctx, p)
		s.mu.Unlock()
		_, err := s.await(ctx, ch)
		return err
	case isExpanded:
		delete(s.expanded, p)
		s.mu.Unlock()
		s.notifyExpansion()
		s.sink.Emit(StructureChanged{Paths: []string{p}})
		return nil
	}
	return s.expandLocked(ctx, p)
}

// Expand marks p expanded and lists it if it is not cached yet.
func (s *Store) Expand(ctx context.Context, p string) error {
	s.mu.Lock()
	if err := s.checkDirLocked(OpExpand, p); err != nil {
		s.mu.Unlock()
		return err
	}
	return s.expandLocked(ctx, p)
}

// expandLocked is entered with s.mu held and releases it.
func (s *Store) expandLocked(ctx context.Context, p string) error {
	_, already := s.expanded[p]
	s.expanded[p] = struct{}{}
	_, cached := s.children[p]
	var ch <-chan singleflight.Result
	if !cached {
		ch = s.joinLocked(ctx, p)
	}
	s.mu.Unlock()

	if !already {
		s.notifyExpansion()
	}
	if cached {
		metrics.RecordCacheHit()
		if !already {
			s.sink.Emit(StructureChanged{Paths: []string{p}})
		}
		return nil
	}

	_, err := s.await(ctx, ch)
	if err == nil {
		return nil
	}
	var lerr *ListingError
	if errors.As(err, &lerr) && !already {
		s.mu.Lock()
		_, loaded := s.children[p]
		if !loaded {
			delete(s.expanded, p)
		}
		s.mu.Unlock()
		if !loaded {
			s.notifyExpansion()
		}
	}
	return err
}

// Collapse removes p from the expansion set. Its children stay cached.
func (s *Store) Collapse(p string) {
	s.mu.Lock()
	_, ok := s.expanded[p]
	delete(s.expanded, p)
	s.mu.Unlock()
	if ok {
		s.notifyExpansion()
		s.sink.Emit(StructureChanged{Paths: []string{p}})
	}
}

// Invalidate forgets the cached listing of p so the next load goes to the
// backend. The expansion state is kept.
func (s *Store) Invalidate(p string) {
	s.mu.Lock()
	delete(s.children, p)
	s.gen[p]++
	s.mu.Unlock()
}

// PatchAfterCreate records a node the backend just created under parent.
// If parent is not loaded the cache is left alone and the node shows up on
// the next listing. Either way parent ends up expanded.
func (s *Store) PatchAfterCreate(parent string, node *model.TreeNode) error {
	if err := node.Validate(); err != nil || node.Path == model.RootPath || model.Parent(node.Path) != parent {
		return &ConsistencyError{Op: "create", Path: parent, Detail: fmt.Sprintf("node %+v does not belong here", node)}
	}

	s.mu.Lock()
	if err := s.checkDirLocked(OpCreateNote, parent); err != nil {
		s.mu.Unlock()
		return &ConsistencyError{Op: "create", Path: parent, Detail: "parent is not a known folder"}
	}
	if kids, ok := s.children[parent]; ok {
		s.children[parent] = upsert(kids, node)
	}
	s.gen[parent]++
	s.setHasChildrenLocked(parent, true)
	_, already := s.expanded[parent]
	s.expanded[parent] = struct{}{}
	s.mu.Unlock()

	if !already {
		s.notifyExpansion()
	}
	return nil
}

// PatchAfterDelete removes p from its parent's listing and forgets every
// cache and expansion entry at or below p.
func (s *Store) PatchAfterDelete(p string) error {
	if p == model.RootPath {
		return &ConsistencyError{Op: "delete", Path: p, Detail: "cannot delete the root"}
	}

	var cerr error
	s.mu.Lock()
	parent := model.Parent(p)
	if kids, ok := s.children[parent]; ok {
		next, found := remove(kids, p)
		if !found {
			cerr = &ConsistencyError{Op: "delete", Path: p, Detail: "not present in its parent's listing"}
		} else {
			s.children[parent] = next
			if len(next) == 0 {
				s.setHasChildrenLocked(parent, false)
			}
		}
	}
	s.gen[parent]++
	changed := s.dropSubtreeLocked(p)
	s.mu.Unlock()

	if changed {
		s.notifyExpansion()
	}
	return cerr
}

// PatchAfterRename renames a node in place. For directories every cache key,
// descendant node path and expansion entry under oldPath is rewritten to
// the new prefix.
func (s *Store) PatchAfterRename(oldPath, newPath string, isDir bool) error {
	if oldPath == model.RootPath || newPath == model.RootPath {
		return &ConsistencyError{Op: "rename", Path: oldPath, Detail: "cannot rename the root"}
	}
	parent := model.Parent(oldPath)
	if model.Parent(newPath) != parent {
		return &ConsistencyError{Op: "rename", Path: oldPath, Detail: fmt.Sprintf("%q is not a sibling", newPath)}
	}

	var cerr error
	s.mu.Lock()
	if kids, ok := s.children[parent]; ok {
		i := indexOf(kids, oldPath)
		if i < 0 {
			cerr = &ConsistencyError{Op: "rename", Path: oldPath, Detail: "not present in its parent's listing"}
		} else {
			next := make([]*model.TreeNode, len(kids))
			copy(next, kids)
			n := kids[i].Clone()
			n.Name = model.Base(newPath)
			n.Path = newPath
			next[i] = n
			s.children[parent] = next
		}
	}
	changed := false
	if isDir {
		changed = s.rewriteSubtreeLocked(oldPath, newPath)
	}
	s.mu.Unlock()

	if changed {
		s.notifyExpansion()
	}
	return cerr
}

// PatchAfterMove moves source under targetParent keeping its name.
func (s *Store) PatchAfterMove(source, targetParent string, isDir bool) error {
	return s.PatchAfterMoveTo(source, model.Join(targetParent, model.Base(source)), isDir)
}

// PatchAfterMoveTo is a delete at source followed by a create at newPath,
// with the same prefix rewrite as rename for the moved subtree. A source
// parent left empty has its cache entry invalidated.
func (s *Store) PatchAfterMoveTo(source, newPath string, isDir bool) error {
	if source == model.RootPath || newPath == model.RootPath {
		return &ConsistencyError{Op: "move", Path: source, Detail: "cannot move the root"}
	}
	oldParent, newParent := model.Parent(source), model.Parent(newPath)

	var cerr error
	s.mu.Lock()
	var moved *model.TreeNode
	if kids, ok := s.children[oldParent]; ok {
		if i := indexOf(kids, source); i >= 0 {
			moved = kids[i].Clone()
		}
		next, found := remove(kids, source)
		switch {
		case !found:
			cerr = &ConsistencyError{Op: "move", Path: source, Detail: "not present in its parent's listing"}
		case len(next) == 0:
			delete(s.children, oldParent)
			s.setHasChildrenLocked(oldParent, false)
		default:
			s.children[oldParent] = next
		}
	}
	s.gen[oldParent]++

	changed := false
	if isDir {
		changed = s.rewriteSubtreeLocked(source, newPath)
	}

	if moved == nil {
		moved = &model.TreeNode{IsDir: isDir, HasChildren: isDir}
	}
	moved.Name = model.Base(newPath)
	moved.Path = newPath

	if s.checkDirLocked(OpMove, newParent) == nil {
		if kids, ok := s.children[newParent]; ok {
			s.children[newParent] = upsert(kids, moved)
		}
		s.gen[newParent]++
		s.setHasChildrenLocked(newParent, true)
		if _, ok := s.expanded[newParent]; !ok {
			s.expanded[newParent] = struct{}{}
			changed = true
		}
	} else if cerr == nil {
		cerr = &ConsistencyError{Op: "move", Path: source, Detail: fmt.Sprintf("target %q is not a known folder", newParent)}
	}
	s.mu.Unlock()

	if changed {
		s.notifyExpansion()
	}
	return cerr
}

// rewriteSubtreeLocked moves every cache key and expansion entry at or below
// oldPrefix to newPrefix, cloning the affected nodes.
func (s *Store) rewriteSubtreeLocked(oldPrefix, newPrefix string) bool {
	rewritten := make(map[string][]*model.TreeNode)
	for key, kids := range s.children {
		newKey, ok := model.RewritePrefix(key, oldPrefix, newPrefix)
		if !ok {
			continue
		}
		next := make([]*model.TreeNode, len(kids))
		for i, n := range kids {
			c := n.Clone()
			c.Path, _ = model.RewritePrefix(n.Path, oldPrefix, newPrefix)
			next[i] = c
		}
		delete(s.children, key)
		rewritten[newKey] = next
	}
	for k, v := range rewritten {
		s.children[k] = v
	}

	changed := false
	for key := range s.expanded {
		if newKey, ok := model.RewritePrefix(key, oldPrefix, newPrefix); ok {
			delete(s.expanded, key)
			s.expanded[newKey] = struct{}{}
			changed = true
		}
	}
	for key := range s.inflight {
		if model.IsSelfOrDescendant(key, oldPrefix) {
			s.gen[key]++
		}
	}
	return changed
}

// dropSubtreeLocked forgets everything at or below p. It reports whether the
// expansion set changed.
func (s *Store) dropSubtreeLocked(p string) bool {
	for key := range s.children {
		if model.IsSelfOrDescendant(key, p) {
			delete(s.children, key)
		}
	}
	for key := range s.inflight {
		if model.IsSelfOrDescendant(key, p) {
			s.gen[key]++
		}
	}
	changed := false
	for key := range s.expanded {
		if model.IsSelfOrDescendant(key, p) {
			delete(s.expanded, key)
			changed = true
		}
	}
	return changed
}

// setHasChildrenLocked keeps the lazy hint of directory p in its parent's
// listing in step with what the cache now knows.
func (s *Store) setHasChildrenLocked(p string, has bool) {
	if p == model.RootPath {
		return
	}
	parent := model.Parent(p)
	kids, ok := s.children[parent]
	if !ok {
		return
	}
	i := indexOf(kids, p)
	if i < 0 || kids[i].HasChildren == has {
		return
	}
	next := make([]*model.TreeNode, len(kids))
	copy(next, kids)
	c := kids[i].Clone()
	c.HasChildren = has
	next[i] = c
	s.children[parent] = next
}

// checkDirLocked verifies that p names the root or a directory present in a
// loaded listing.
func (s *Store) checkDirLocked(op Op, p string) error {
	if p == model.RootPath {
		return nil
	}
	n, ok := s.lookupLocked(p)
	if !ok {
		return invalid(op, p, ErrUnknownPath)
	}
	if !n.IsDir {
		return invalid(op, p, ErrNotDirectory)
	}
	return nil
}

func (s *Store) lookupLocked(p string) (*model.TreeNode, bool) {
	if p == model.RootPath {
		return s.root, true
	}
	kids, ok := s.children[model.Parent(p)]
	if !ok {
		return nil, false
	}
	if i := indexOf(kids, p); i >= 0 {
		return kids[i], true
	}
	return nil, false
}

// Lookup returns the cached node at p. The root is always known.
func (s *Store) Lookup(p string) (*model.TreeNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(p)
}

// IsExpanded reports whether p is in the expansion set.
func (s *Store) IsExpanded(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[p]
	return ok
}

// IsLoaded reports whether p has a cached listing.
func (s *Store) IsLoaded(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.children[p]
	return ok
}

// IsLoading reports whether a listing of p is in flight.
func (s *Store) IsLoading(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[p]
}

// LoadedPaths returns every directory with a cached listing, sorted.
func (s *Store) LoadedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.children))
	for k := range s.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ExpandedPaths returns the expansion set, sorted.
func (s *Store) ExpandedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expandedLocked()
}

func (s *Store) expandedLocked() []string {
	out := make([]string, 0, len(s.expanded))
	for k := range s.expanded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *Store) notifyExpansion() {
	if s.onExpansion == nil {
		return
	}
	s.onExpansion(s.ExpandedPaths())
}

// Snapshot returns a read-only view of the cache and the expansion set.
func (s *Store) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := &Snapshot{
		Root:     s.root,
		children: make(map[string][]*model.TreeNode, len(s.children)),
		expanded: make(map[string]struct{}, len(s.expanded)),
	}
	for k, v := range s.children {
		snap.children[k] = v
	}
	for k := range s.expanded {
		snap.expanded[k] = struct{}{}
	}
	return snap
}

// Snapshot is an immutable view of a Store at one point in time. Node
// pointers and child slices are shared with the store and must not be
// modified.
type Snapshot struct {
	Root     *model.TreeNode
	children map[string][]*model.TreeNode
	expanded map[string]struct{}
}

// NewSnapshot builds a snapshot directly from a cache and an expansion set.
// Flatten is a pure function of these two, which this makes testable.
func NewSnapshot(root *model.TreeNode, children map[string][]*model.TreeNode, expanded []string) *Snapshot {
	if root == nil {
		root = model.Root("vault")
	}
	snap := &Snapshot{
		Root:     root,
		children: make(map[string][]*model.TreeNode, len(children)),
		expanded: make(map[string]struct{}, len(expanded)),
	}
	for k, v := range children {
		snap.children[k] = v
	}
	for _, p := range expanded {
		snap.expanded[p] = struct{}{}
	}
	return snap
}

// Children returns the cached children of p and whether p is loaded.
func (s *Snapshot) Children(p string) ([]*model.TreeNode, bool) {
	kids, ok := s.children[p]
	return kids, ok
}

// IsExpanded reports whether p was expanded.
func (s *Snapshot) IsExpanded(p string) bool {
	_, ok := s.expanded[p]
	return ok
}

// IsLoaded reports whether p had a cached listing.
func (s *Snapshot) IsLoaded(p string) bool {
	_, ok := s.children[p]
	return ok
}

// Lookup finds the node at p.
func (s *Snapshot) Lookup(p string) (*model.TreeNode, bool) {
	if p == model.RootPath {
		return s.Root, true
	}
	kids, ok := s.children[model.Parent(p)]
	if !ok {
		return nil, false
	}
	if i := indexOf(kids, p); i >= 0 {
		return kids[i], true
	}
	return nil, false
}

// Keys returns the loaded directory paths, sorted.
func (s *Snapshot) Keys() []string {
	out := make([]string, 0, len(s.children))
	for k := range s.children {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Expanded returns the expansion set, sorted.
func (s *Snapshot) Expanded() []string {
	out := make([]string, 0, len(s.expanded))
	for k := range s.expanded {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(nodes []*model.TreeNode, p string) int {
	for i, n := range nodes {
		if n.Path == p {
			return i
		}
	}
	return -1
}

// remove returns a new slice without p.
func remove(nodes []*model.TreeNode, p string) ([]*model.TreeNode, bool) {
	i := indexOf(nodes, p)
	if i < 0 {
		return nodes, false
	}
	next := make([]*model.TreeNode, 0, len(nodes)-1)
	next = append(next, nodes[:i]...)
	next = append(next, nodes[i+1:]...)
	return next, true
}

// upsert returns a new slice with n appended, or replacing an entry with the
// same path.
func upsert(nodes []*model.TreeNode, n *model.TreeNode) []*model.TreeNode {
	next := make([]*model.TreeNode, len(nodes), len(nodes)+1)
	copy(next, nodes)
	if i := indexOf(next, n.Path); i >= 0 {
		next[i] = n
		return next
	}
	return append(next, n)
}
