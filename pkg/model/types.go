package model

import (
	"fmt"
	"strings"
)

// Separator is the path separator used for every tree path, independent of
// the host OS. Backends translate to and from their native form.
const Separator = "/"

// RootPath identifies the synthetic root of a vault.
const RootPath = ""

// TreeNode represents a file or directory entry in a vault.
//
// Path is the identity key: unique within the vault, relative, '/'
// separated, and "" for the root. HasChildren is a lazy hint from the
// backend; directories reporting false render without an expand
// affordance. Depth is not stored here, it is assigned when the tree is
// flattened.
type TreeNode struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	IsDir       bool   `json:"is_dir"`
	HasChildren bool   `json:"has_children"`
}

// Root returns the synthetic root node used to host the top-level listing.
func Root(label string) *TreeNode {
	return &TreeNode{
		Name:        label,
		Path:        RootPath,
		IsDir:       true,
		HasChildren: true,
	}
}

// IsRoot reports whether the node is the synthetic root.
func (n *TreeNode) IsRoot() bool {
	return n != nil && n.Path == RootPath
}

// Clone returns a copy of the node.
func (n *TreeNode) Clone() *TreeNode {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// Validate checks structural consistency of a node as produced by a backend.
func (n *TreeNode) Validate() error {
	if n == nil {
		return fmt.Errorf("node is nil")
	}
	if n.Path == RootPath {
		if !n.IsDir {
			return fmt.Errorf("root node must be a directory")
		}
		return nil
	}
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("node %q has empty name", n.Path)
	}
	if Base(n.Path) != n.Name {
		return fmt.Errorf("node name %q does not match path %q", n.Name, n.Path)
	}
	if strings.HasPrefix(n.Path, Separator) || strings.HasSuffix(n.Path, Separator) {
		return fmt.Errorf("node path %q must be relative without trailing separator", n.Path)
	}
	if !n.IsDir && n.HasChildren {
		return fmt.Errorf("file %q cannot have children", n.Path)
	}
	return nil
}

// Join builds a child path from a parent path and a name.
func Join(parent, name string) string {
	if parent == RootPath {
		return name
	}
	return parent + Separator + name
}

// Parent returns the parent path of p. The parent of a top-level entry
// and of the root itself is the root.
func Parent(p string) string {
	i := strings.LastIndex(p, Separator)
	if i < 0 {
		return RootPath
	}
	return p[:i]
}

// Base returns the last element of p.
func Base(p string) string {
	i := strings.LastIndex(p, Separator)
	if i < 0 {
		return p
	}
	return p[i+1:]
}

// Depth returns the nesting level of p, with top-level entries at 0.
// The root itself reports -1.
func Depth(p string) int {
	if p == RootPath {
		return -1
	}
	return strings.Count(p, Separator)
}

// IsSelfOrDescendant reports whether p equals ancestor or lies beneath it.
// The comparison is separator aware: "foo2" is not beneath "foo".
// Every path is beneath the root.
func IsSelfOrDescendant(p, ancestor string) bool {
	if ancestor == RootPath {
		return true
	}
	if p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+Separator)
}

// IsDescendant is IsSelfOrDescendant excluding equality.
func IsDescendant(p, ancestor string) bool {
	return p != ancestor && IsSelfOrDescendant(p, ancestor)
}

// RewritePrefix substitutes oldPrefix with newPrefix in p when p equals
// oldPrefix or lies beneath it, preserving the suffix. The second return
// value reports whether a substitution happened.
func RewritePrefix(p, oldPrefix, newPrefix string) (string, bool) {
	if oldPrefix == RootPath {
		return p, false
	}
	if p == oldPrefix {
		return newPrefix, true
	}
	if !strings.HasPrefix(p, oldPrefix+Separator) {
		return p, false
	}
	suffix := p[len(oldPrefix)+len(Separator):]
	return Join(newPrefix, suffix), true
}

// Ancestors returns the ancestor directories of p from the top level down,
// excluding the root and p itself.
func Ancestors(p string) []string {
	if p == RootPath {
		return nil
	}
	parts := strings.Split(p, Separator)
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], Separator))
	}
	return out
}

// ValidName reports whether name can be used as a single path element.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
