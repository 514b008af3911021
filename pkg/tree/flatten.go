package tree

import (
	"time"

	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// Row is one entry of the flattened tree. Level is the display depth,
// assigned during flattening; the node itself carries no depth.
type Row struct {
	Node     *model.TreeNode
	Level    int
	Expanded bool // directory is in the expansion set
	Loaded   bool // directory has a cached listing
}

// Path returns the row's node path.
func (r Row) Path() string {
	return r.Node.Path
}

// Expandable reports whether the row should show an expand affordance.
func (r Row) Expandable() bool {
	return r.Node.IsDir && r.Node.HasChildren
}

// Flatten walks the snapshot in pre-order from the root's children at level
// 0. An expanded directory is followed by its cached children one level
// deeper. An expanded directory without a cached listing contributes no
// children until its load completes.
func Flatten(snap *Snapshot) []Row {
	start := time.Now()
	rows := appendChildren(nil, snap, model.RootPath, 0)
	metrics.RecordFlatten("full", time.Since(start), len(rows))
	return rows
}

// FlattenFiltered flattens only the subtrees rooted at paths, in the given
// order, each root at level 0. Paths the snapshot does not know are skipped,
// as are paths already covered by an earlier root.
func FlattenFiltered(snap *Snapshot, paths []string) []Row {
	nodes := make([]*model.TreeNode, 0, len(paths))
	for _, p := range paths {
		if n, ok := snap.Lookup(p); ok && p != model.RootPath {
			nodes = append(nodes, n)
		}
	}
	return FlattenNodes(snap, nodes)
}

// FlattenNodes is FlattenFiltered for callers that already resolved nodes,
// such as a tag index that is not backed by the cache.
func FlattenNodes(snap *Snapshot, roots []*model.TreeNode) []Row {
	start := time.Now()
	var rows []Row
	covered := make([]string, 0, len(roots))
outer:
	for _, n := range roots {
		if n == nil {
			continue
		}
		for _, c := range covered {
			if shownUnder(snap, n.Path, c) {
				continue outer
			}
		}
		covered = append(covered, n.Path)
		rows = appendNode(rows, snap, n, 0)
	}
	metrics.RecordFlatten("filtered", time.Since(start), len(rows))
	return rows
}

// Reflatten updates prev after the subtree of dir changed, rebuilding only
// the rows belonging to dir. It falls back to a full Flatten when dir is the
// root, is gone, or is no longer reachable through expanded ancestors. If
// dir is not part of prev, prev is returned unchanged.
func Reflatten(prev []Row, snap *Snapshot, dir string) []Row {
	if dir == model.RootPath {
		return Flatten(snap)
	}
	node, ok := snap.Lookup(dir)
	if !ok || !reachable(snap, dir) {
		return Flatten(snap)
	}
	idx := -1
	for i, r := range prev {
		if r.Node.Path == dir {
			idx = i
			break
		}
	}
	if idx < 0 {
		return prev
	}

	start := time.Now()
	level := prev[idx].Level
	end := idx + 1
	for end < len(prev) && prev[end].Level > level {
		end++
	}

	sub := appendNode(nil, snap, node, level)
	rows := make([]Row, 0, len(prev)-(end-idx)+len(sub))
	rows = append(rows, prev[:idx]...)
	rows = append(rows, sub...)
	rows = append(rows, prev[end:]...)
	metrics.RecordFlatten("partial", time.Since(start), len(rows))
	return rows
}

// ReflattenAll applies Reflatten for each changed directory in turn.
func ReflattenAll(prev []Row, snap *Snapshot, dirs []string) []Row {
	if len(dirs) == 0 {
		return prev
	}
	rows := prev
	for _, d := range dirs {
		if d == model.RootPath {
			return Flatten(snap)
		}
		rows = Reflatten(rows, snap, d)
	}
	return rows
}

// shownUnder reports whether p already appears in the rows produced for the
// filter root c.
func shownUnder(snap *Snapshot, p, c string) bool {
	if p == c {
		return true
	}
	if !model.IsDescendant(p, c) {
		return false
	}
	for _, a := range model.Ancestors(p) {
		if a != c && !model.IsDescendant(a, c) {
			continue
		}
		if !snap.IsExpanded(a) || !snap.IsLoaded(a) {
			return false
		}
	}
	return true
}

// reachable reports whether every ancestor of p is expanded and loaded.
func reachable(snap *Snapshot, p string) bool {
	if !snap.IsLoaded(model.RootPath) {
		return false
	}
	for _, a := range model.Ancestors(p) {
		if !snap.IsExpanded(a) || !snap.IsLoaded(a) {
			return false
		}
	}
	return true
}

func appendNode(rows []Row, snap *Snapshot, n *model.TreeNode, level int) []Row {
	expanded := n.IsDir && snap.IsExpanded(n.Path)
	loaded := n.IsDir && snap.IsLoaded(n.Path)
	rows = append(rows, Row{Node: n, Level: level, Expanded: expanded, Loaded: loaded})
	if expanded && loaded {
		rows = appendChildren(rows, snap, n.Path, level+1)
	}
	return rows
}

func appendChildren(rows []Row, snap *Snapshot, dir string, level int) []Row {
	kids, ok := snap.Children(dir)
	if !ok {
		return rows
	}
	for _, n := range kids {
		rows = appendNode(rows, snap, n, level)
	}
	return rows
}
