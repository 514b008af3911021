package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/notetree/pkg/backend/fsvault"
	"github.com/vanderheijden86/notetree/pkg/state"
	"github.com/vanderheijden86/notetree/pkg/tree"
)

// newVault lays out a vault on disk; names ending in "/" are folders.
func newVault(t *testing.T, entries ...string) *fsvault.Vault {
	t.Helper()
	root := t.TempDir()
	for _, e := range entries {
		p := filepath.Join(root, filepath.FromSlash(e))
		if strings.HasSuffix(e, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("# "+e+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	v, err := fsvault.New(root)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// drain applies every queued event.
func drain(w *Workspace) []string {
	var msgs []string
	for {
		select {
		case ev := <-w.Events():
			if msg := w.Apply(ev); msg != "" {
				msgs = append(msgs, msg)
			}
		default:
			return msgs
		}
	}
}

// visible renders rows as "level:path" for compact comparisons.
func visible(w *Workspace) string {
	var parts []string
	for _, r := range w.Rows() {
		parts = append(parts, strings.Repeat(".", r.Level)+r.Node.Path)
	}
	return strings.Join(parts, " ")
}

func openWorkspace(t *testing.T, v *fsvault.Vault, opts ...Option) *Workspace {
	t.Helper()
	w := New(v, opts...)
	t.Cleanup(w.Close)
	if err := w.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	drain(w)
	return w
}

func TestOpenShowsTopLevel(t *testing.T) {
	v := newVault(t, "docs/a.md", "notes/", "readme.md")
	w := openWorkspace(t, v)

	if got := visible(w); got != "docs notes readme.md" {
		t.Errorf("unexpected rows %q", got)
	}
	if w.Describe() != v.Root() {
		t.Errorf("expected adapter description, got %q", w.Describe())
	}
}

func TestOpenFailsWhenRootCannotBeListed(t *testing.T) {
	v := newVault(t)
	if err := os.RemoveAll(v.Root()); err != nil {
		t.Fatal(err)
	}
	w := New(v)
	defer w.Close()
	if err := w.Open(context.Background()); err == nil {
		t.Error("expected an error for a vanished vault root")
	}
}

func TestToggleUpdatesVisibleList(t *testing.T) {
	v := newVault(t, "docs/a.md", "docs/sub/b.md", "z.md")
	w := openWorkspace(t, v)
	ctx := context.Background()

	if err := w.Store().ToggleExpand(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if got := visible(w); got != "docs .docs/sub .docs/a.md z.md" {
		t.Errorf("unexpected rows after expand %q", got)
	}

	if err := w.Store().ToggleExpand(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if got := visible(w); got != "docs z.md" {
		t.Errorf("unexpected rows after collapse %q", got)
	}
}

func TestRestoreExpandsSavedFoldersParentFirst(t *testing.T) {
	v := newVault(t, "docs/sub/n.md", "docs/a.md", "other/x.md", "a.md")
	statePath := filepath.Join(t.TempDir(), "state.json")
	saved := &state.State{
		Version:         state.Version,
		ExpandedFolders: []string{"docs/sub", "ghost", "a.md", "docs", "other/missing"},
		LastFile:        "docs/sub/n.md",
	}
	if err := state.Save(statePath, saved); err != nil {
		t.Fatal(err)
	}

	w := openWorkspace(t, v, WithStateFile(statePath))
	if got := strings.Join(w.Store().ExpandedPaths(), ","); got != "docs,docs/sub" {
		t.Errorf("expected only real folders restored, got %q", got)
	}
	if got := visible(w); got != "docs .docs/sub ..docs/sub/n.md .docs/a.md other a.md" {
		t.Errorf("unexpected restored rows %q", got)
	}
	if got := w.LastSelection(); got != "docs/sub/n.md" {
		t.Errorf("expected last file re-selected, got %q", got)
	}
}

func TestStatePersistsExpansionAndSelection(t *testing.T) {
	v := newVault(t, "docs/a.md", "b.md")
	statePath := filepath.Join(t.TempDir(), "state.json")
	w := New(v, WithStateFile(statePath))
	ctx := context.Background()
	if err := w.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Store().Expand(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	w.Select(w.Rows()[w.IndexOf("docs/a.md")])
	w.Close()

	got := state.Load(statePath)
	if strings.Join(got.ExpandedFolders, ",") != "docs" {
		t.Errorf("expected docs persisted, got %v", got.ExpandedFolders)
	}
	if got.LastFile != "docs/a.md" || got.LastFolder != "docs" {
		t.Errorf("expected selection persisted, got %+v", got)
	}
}

func TestCreateIntoUnloadedFolderShowsNewNote(t *testing.T) {
	v := newVault(t, "archive/old.md", "a.md")
	w := openWorkspace(t, v)

	res, err := w.CreateNote(context.Background(), "archive", "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if res.Node.Path != "archive/fresh.md" {
		t.Errorf("expected extension applied, got %q", res.Node.Path)
	}
	drain(w)
	if got := visible(w); got != "archive .archive/fresh.md .archive/old.md a.md" {
		t.Errorf("unexpected rows %q", got)
	}
}

func TestRenameAndDeleteRemapSelection(t *testing.T) {
	v := newVault(t, "docs/a.md", "b.md")
	w := openWorkspace(t, v)
	ctx := context.Background()

	if err := w.Store().Expand(ctx, "docs"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	w.Select(w.Rows()[w.IndexOf("docs/a.md")])

	if _, err := w.Rename(ctx, "docs", "papers"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if st := w.State(); st.LastFile != "papers/a.md" || st.LastFolder != "papers" {
		t.Errorf("expected selection remapped, got %+v", st)
	}
	if got := visible(w); got != "papers .papers/a.md b.md" {
		t.Errorf("unexpected rows after rename %q", got)
	}

	if _, err := w.Delete(ctx, "papers", tree.Confirmed); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if st := w.State(); st.LastFile != "" || st.LastFolder != "" {
		t.Errorf("expected selection cleared, got %+v", st)
	}
	if got := visible(w); got != "b.md" {
		t.Errorf("unexpected rows after delete %q", got)
	}
}

func TestMoveIntoUnloadedFolder(t *testing.T) {
	v := newVault(t, "inbox/a.md", "projects/p.md")
	w := openWorkspace(t, v)
	ctx := context.Background()

	if err := w.Store().Expand(ctx, "inbox"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if _, err := w.Move(ctx, "inbox/a.md", "projects"); err != nil {
		t.Fatal(err)
	}
	drain(w)
	if got := visible(w); got != "inbox projects .projects/a.md .projects/p.md" {
		t.Errorf("unexpected rows after move %q", got)
	}
}

func TestFilterMode(t *testing.T) {
	v := newVault(t, "docs/plan.md", "docs/other.md", "plans/", "x.md")
	w := openWorkspace(t, v)
	if err := w.Store().Expand(context.Background(), "docs"); err != nil {
		t.Fatal(err)
	}
	drain(w)

	if n := w.Filter("PLAN"); n != 2 {
		t.Errorf("expected 2 matches, got %d", n)
	}
	if !w.Filtering() || w.FilterQuery() != "PLAN" {
		t.Error("expected filter mode on")
	}
	if got := visible(w); got != "docs/plan.md plans" {
		t.Errorf("unexpected filtered rows %q", got)
	}

	w.ClearFilter()
	if w.Filtering() {
		t.Error("expected filter mode off")
	}
	if got := visible(w); got != "docs .docs/other.md .docs/plan.md plans x.md" {
		t.Errorf("unexpected rows after clearing filter %q", got)
	}
}

func TestRefreshDirsPicksUpExternalChanges(t *testing.T) {
	v := newVault(t, "a.md", "docs/")
	w := openWorkspace(t, v)

	if err := os.WriteFile(filepath.Join(v.Root(), "b.md"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	w.RefreshDirs(context.Background(), []string{"", "never-loaded"})
	drain(w)
	if got := visible(w); got != "docs a.md b.md" {
		t.Errorf("unexpected rows after refresh %q", got)
	}
}

func TestLoadFailedSurfacesMessage(t *testing.T) {
	v := newVault(t, "docs/a.md")
	w := openWorkspace(t, v)
	if err := os.RemoveAll(filepath.Join(v.Root(), "docs")); err != nil {
		t.Fatal(err)
	}

	if err := w.Store().ToggleExpand(context.Background(), "docs"); err == nil {
		t.Fatal("expected listing error")
	}
	msgs := drain(w)
	if len(msgs) != 1 || !strings.Contains(msgs[0], "docs") {
		t.Errorf("expected one message naming docs, got %v", msgs)
	}
	if w.Store().IsExpanded("docs") {
		t.Error("expected expansion rolled back")
	}
}

func TestThrottledScroll(t *testing.T) {
	entries := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, filepathName(i))
	}
	v := newVault(t, entries...)
	w := openWorkspace(t, v)
	w.Viewport().Resize(10)

	done := make(chan struct{}, 8)
	for i := 0; i < 5; i++ {
		w.RequestScroll(3, func() { done <- struct{}{} })
	}
	<-done
	w.ApplyScroll()
	if got := w.Viewport().ScrollOffset(); got != 15 {
		t.Errorf("expected accumulated scroll 15, got %d", got)
	}
	w.ApplyScroll()
	if got := w.Viewport().ScrollOffset(); got != 15 {
		t.Errorf("expected no further scroll, got %d", got)
	}
}

func filepathName(i int) string {
	return "n" + string(rune('a'+i/26)) + string(rune('a'+i%26)) + ".md"
}
