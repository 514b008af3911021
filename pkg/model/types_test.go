package model

import (
	"reflect"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestJoinParentBase(t *testing.T) {
	tests := []struct {
		name   string
		parent string
		child  string
		want   string
	}{
		{"TopLevel", "", "a.md", "a.md"},
		{"Nested", "docs", "a.md", "docs/a.md"},
		{"Deep", "a/b/c", "d", "a/b/c/d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Join(tt.parent, tt.child)
			if got != tt.want {
				t.Errorf("Join(%q, %q) = %q, want %q", tt.parent, tt.child, got, tt.want)
			}
			if p := Parent(got); p != tt.parent {
				t.Errorf("Parent(%q) = %q, want %q", got, p, tt.parent)
			}
			if b := Base(got); b != tt.child {
				t.Errorf("Base(%q) = %q, want %q", got, b, tt.child)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	tests := map[string]int{
		"":      -1,
		"a":     0,
		"a/b":   1,
		"a/b/c": 2,
	}
	for p, want := range tests {
		if got := Depth(p); got != want {
			t.Errorf("Depth(%q) = %d, want %d", p, got, want)
		}
	}
}

func TestIsSelfOrDescendant(t *testing.T) {
	tests := []struct {
		name     string
		p        string
		ancestor string
		want     bool
	}{
		{"Self", "foo", "foo", true},
		{"Child", "foo/bar", "foo", true},
		{"Grandchild", "foo/bar/baz", "foo", true},
		{"SiblingPrefix", "foo2", "foo", false},
		{"SiblingPrefixNested", "foo2/bar", "foo", false},
		{"Parent", "foo", "foo/bar", false},
		{"UnderRoot", "foo", "", true},
		{"RootUnderRoot", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSelfOrDescendant(tt.p, tt.ancestor); got != tt.want {
				t.Errorf("IsSelfOrDescendant(%q, %q) = %v, want %v", tt.p, tt.ancestor, got, tt.want)
			}
		})
	}

	if IsDescendant("foo", "foo") {
		t.Error("a path must not be its own strict descendant")
	}
}

func TestRewritePrefix(t *testing.T) {
	tests := []struct {
		name    string
		p       string
		old     string
		new     string
		want    string
		changed bool
	}{
		{"Exact", "a", "a", "z", "z", true},
		{"Child", "a/b", "a", "z", "z/b", true},
		{"Deep", "a/b/c", "a", "z", "z/b/c", true},
		{"Unrelated", "b/a", "a", "z", "b/a", false},
		{"SiblingPrefix", "ab/c", "a", "z", "ab/c", false},
		{"MoveDeeper", "a/b", "a", "x/y/a", "x/y/a/b", true},
		{"MoveToTop", "x/a/b", "x/a", "a", "a/b", true},
		{"RootOldPrefix", "a", "", "z", "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RewritePrefix(tt.p, tt.old, tt.new)
			if got != tt.want || changed != tt.changed {
				t.Errorf("RewritePrefix(%q, %q, %q) = (%q, %v), want (%q, %v)",
					tt.p, tt.old, tt.new, got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestAncestors(t *testing.T) {
	if got := Ancestors(""); got != nil {
		t.Errorf("expected no ancestors for root, got %v", got)
	}
	if got := Ancestors("a"); len(got) != 0 {
		t.Errorf("expected no ancestors for top-level path, got %v", got)
	}
	want := []string{"a", "a/b"}
	if got := Ancestors("a/b/c.md"); !reflect.DeepEqual(got, want) {
		t.Errorf("Ancestors = %v, want %v", got, want)
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"a.md", "notes", "with space", ".hidden"}
	invalid := []string{"", ".", "..", "a/b", `a\b`}
	for _, n := range valid {
		if !ValidName(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}
	for _, n := range invalid {
		if ValidName(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}

func TestTreeNode_Validate(t *testing.T) {
	tests := []struct {
		name    string
		node    *TreeNode
		wantErr bool
	}{
		{"Root", Root("vault"), false},
		{"File", &TreeNode{Name: "a.md", Path: "docs/a.md"}, false},
		{"Dir", &TreeNode{Name: "docs", Path: "docs", IsDir: true, HasChildren: true}, false},
		{"Nil", nil, true},
		{"EmptyName", &TreeNode{Name: " ", Path: "x"}, true},
		{"NameMismatch", &TreeNode{Name: "b.md", Path: "docs/a.md"}, true},
		{"Absolute", &TreeNode{Name: "a", Path: "/a"}, true},
		{"FileWithChildren", &TreeNode{Name: "a.md", Path: "a.md", HasChildren: true}, true},
		{"RootFile", &TreeNode{Path: ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTreeNode_CloneIsIndependent(t *testing.T) {
	n := &TreeNode{Name: "a", Path: "a", IsDir: true}
	c := n.Clone()
	c.Name = "b"
	if n.Name != "a" {
		t.Error("mutating the clone changed the original")
	}
	var nilNode *TreeNode
	if nilNode.Clone() != nil {
		t.Error("expected nil clone of nil node")
	}
	if !Root("v").IsRoot() || n.IsRoot() {
		t.Error("IsRoot misreports")
	}
}

func TestRewritePrefixProperties(t *testing.T) {
	segment := rapid.StringMatching(`[a-c]{1,2}`)
	path := rapid.Custom(func(t *rapid.T) string {
		return strings.Join(rapid.SliceOfN(segment, 1, 4).Draw(t, "segments"), "/")
	})
	rapid.Check(t, func(t *rapid.T) {
		p := path.Draw(t, "p")
		oldPrefix := path.Draw(t, "old")
		newPrefix := path.Draw(t, "new")

		got, changed := RewritePrefix(p, oldPrefix, newPrefix)
		if changed != IsSelfOrDescendant(p, oldPrefix) {
			t.Fatalf("changed=%v for %q under %q", changed, p, oldPrefix)
		}
		if !changed {
			if got != p {
				t.Fatalf("unrelated path rewritten: %q -> %q", p, got)
			}
			return
		}
		if !IsSelfOrDescendant(got, newPrefix) {
			t.Fatalf("%q not under new prefix %q", got, newPrefix)
		}
		if Depth(got)-Depth(newPrefix) != Depth(p)-Depth(oldPrefix) {
			t.Fatalf("relative depth changed: %q -> %q", p, got)
		}
		back, _ := RewritePrefix(got, newPrefix, oldPrefix)
		if back != p {
			t.Fatalf("rewrite not reversible: %q -> %q -> %q", p, got, back)
		}
	})
}
