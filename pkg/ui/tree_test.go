package ui

import (
	"context"
	"strings"
	"testing"
)

func newTestTree(t *testing.T, height int, entries ...string) TreeModel {
	t.Helper()
	ws := newTestWorkspace(t, newTestVault(t, entries...))
	tm := NewTreeModel(ws, TestTheme())
	tm.SetSize(60, height)
	return tm
}

func TestTreeModelEmptyVault(t *testing.T) {
	tm := newTestTree(t, 10)

	if _, ok := tm.SelectedRow(); ok {
		t.Error("expected no selection in an empty vault")
	}
	if tm.TargetDir() != "" {
		t.Errorf("expected root target, got %q", tm.TargetDir())
	}
	if !strings.Contains(tm.View(), "Empty vault") {
		t.Errorf("expected empty state, got:\n%s", tm.View())
	}
}

func TestTreeModelTargetDir(t *testing.T) {
	tm := newTestTree(t, 10, "docs/a.md", "readme.md")
	if err := tm.ws.Store().Expand(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	tm.ws.Refresh()

	cases := []struct {
		selected string
		want     string
	}{
		{"docs", "docs"},
		{"docs/a.md", "docs"},
		{"readme.md", ""},
	}
	for _, tc := range cases {
		if !tm.SelectByPath(tc.selected) {
			t.Fatalf("%s not visible", tc.selected)
		}
		if got := tm.TargetDir(); got != tc.want {
			t.Errorf("TargetDir with %s selected = %q, want %q", tc.selected, got, tc.want)
		}
	}
}

func TestTreeModelCursorBounds(t *testing.T) {
	tm := newTestTree(t, 10, "a.md", "b.md", "c.md")

	tm.MoveUp()
	if tm.Cursor() != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", tm.Cursor())
	}
	tm.PageDown()
	if tm.Cursor() != 2 {
		t.Errorf("expected page down to stop at the last row, got %d", tm.Cursor())
	}
	tm.MoveDown()
	if tm.Cursor() != 2 {
		t.Errorf("expected cursor to stay at 2, got %d", tm.Cursor())
	}
	tm.PageUp()
	if tm.Cursor() != 0 {
		t.Errorf("expected page up to stop at 0, got %d", tm.Cursor())
	}
}

func TestTreeModelViewDrawsOnlyScreenRows(t *testing.T) {
	entries := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, filepathName(i))
	}
	tm := newTestTree(t, 5, entries...)

	lines := strings.Split(tm.View(), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], filepathName(0)) {
		t.Errorf("expected first entry on top, got %q", lines[0])
	}

	tm.JumpToBottom()
	lines = strings.Split(tm.View(), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines after jump, got %d", len(lines))
	}
	if !strings.Contains(lines[4], filepathName(39)) {
		t.Errorf("expected last entry at the bottom, got %q", lines[4])
	}
	if got := tm.ws.Viewport().FirstVisible(); got != 35 {
		t.Errorf("expected viewport to follow the cursor to 35, got %d", got)
	}
}

func TestTreeModelKeepCursorInView(t *testing.T) {
	entries := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		entries = append(entries, filepathName(i))
	}
	tm := newTestTree(t, 5, entries...)

	tm.ws.Viewport().SetScroll(10)
	tm.KeepCursorInView()
	if tm.Cursor() != 10 {
		t.Errorf("expected cursor pulled down to 10, got %d", tm.Cursor())
	}
	tm.ws.Viewport().SetScroll(0)
	tm.KeepCursorInView()
	if tm.Cursor() != 4 {
		t.Errorf("expected cursor pulled up to 4, got %d", tm.Cursor())
	}
}

func TestTreeModelReselect(t *testing.T) {
	tm := newTestTree(t, 10, "a.md", "b.md", "c.md")

	tm.SelectByPath("c.md")
	tm.Reselect("b.md")
	if tm.SelectedPath() != "b.md" {
		t.Errorf("expected b.md, got %q", tm.SelectedPath())
	}
	tm.Reselect("gone.md")
	if tm.Cursor() != 1 {
		t.Errorf("expected cursor kept at index 1, got %d", tm.Cursor())
	}
}

func TestTreeModelParentAndFirstChild(t *testing.T) {
	tm := newTestTree(t, 10, "docs/a.md", "readme.md")

	if tm.FirstChild() {
		t.Error("expected no child row while docs is collapsed")
	}
	if err := tm.ws.Store().Expand(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	tm.ws.Refresh()

	if !tm.FirstChild() || tm.SelectedPath() != "docs/a.md" {
		t.Fatalf("expected cursor on docs/a.md, got %q", tm.SelectedPath())
	}
	tm.JumpToParent()
	if tm.SelectedPath() != "docs" {
		t.Errorf("expected cursor back on docs, got %q", tm.SelectedPath())
	}
	tm.JumpToParent()
	if tm.SelectedPath() != "docs" {
		t.Errorf("expected top-level row to stay put, got %q", tm.SelectedPath())
	}
}

func TestTreeModelMarks(t *testing.T) {
	tm := newTestTree(t, 10, "a.md", "b.md")

	tm.SetPinned([]string{"a.md"})
	tm.SetCut("b.md")
	if !tm.IsPinned("a.md") || tm.IsPinned("b.md") {
		t.Error("unexpected pin marks")
	}

	view := tm.View()
	if !strings.Contains(view, "★") {
		t.Error("expected pin marker in view")
	}
	if !strings.Contains(view, "✂") {
		t.Error("expected cut marker in view")
	}
}

func TestExpandIndicator(t *testing.T) {
	tm := newTestTree(t, 10, "docs/a.md", "empty/", "readme.md")

	got := make(map[string]string)
	for _, row := range tm.Rows() {
		got[row.Node.Path] = tm.expandIndicator(row)
	}
	want := map[string]string{"docs": "▸", "empty": "▹", "readme.md": "•"}
	for p, w := range want {
		if got[p] != w {
			t.Errorf("indicator for %s = %q, want %q", p, got[p], w)
		}
	}
}
