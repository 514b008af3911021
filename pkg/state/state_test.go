package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	st := Load(filepath.Join(dir, "missing.json"))
	if st.Version != Version || len(st.ExpandedFolders) != 0 || st.LastFile != "" {
		t.Errorf("expected default state, got %+v", st)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if st := Load(bad); len(st.ExpandedFolders) != 0 {
		t.Errorf("expected default state for corrupt file, got %+v", st)
	}

	future := filepath.Join(dir, "future.json")
	if err := os.WriteFile(future, []byte(`{"version": 99, "expandedFolders": ["x"]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if st := Load(future); len(st.ExpandedFolders) != 0 {
		t.Errorf("expected newer schema to be ignored, got %+v", st)
	}
}

func TestSaveLoadUsesCamelCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", Path("", "abc"))
	st := &State{
		Version:         Version,
		ExpandedFolders: []string{"docs", "docs/2026"},
		LastFolder:      "docs/2026",
		LastFile:        "docs/2026/plan.md",
	}
	if err := Save(path, st); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"expandedFolders"`, `"lastFolder"`, `"lastFile"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected key %s in %s", key, data)
		}
	}

	got := Load(path)
	if got.LastFile != st.LastFile || len(got.ExpandedFolders) != 2 {
		t.Errorf("expected state restored, got %+v", got)
	}
}

func TestLoadAcceptsMinimalDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.json")
	if err := os.WriteFile(path, []byte(`{"lastFile": "a.md"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	st := Load(path)
	if st.LastFile != "a.md" || st.ExpandedFolders == nil {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestRestoreOrderIsParentFirst(t *testing.T) {
	st := &State{ExpandedFolders: []string{"b/c/d", "a", "b", "b/c", "a", "", "a/z"}}
	got := strings.Join(st.RestoreOrder(), ",")
	if got != "a,b,a/z,b/c,b/c/d" {
		t.Errorf("unexpected restore order %q", got)
	}
}

func TestWriterCoalescesToLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	w := NewWriter(path)

	for i := 0; i < 200; i++ {
		st := Default()
		st.LastFile = strings.Repeat("x", i%7) + ".md"
		st.ExpandedFolders = []string{"docs"}
		w.Save(st)
	}
	final := Default()
	final.LastFile = "final.md"
	w.Save(final)
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got State
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.LastFile != "final.md" {
		t.Errorf("expected the latest state on disk, got %q", got.LastFile)
	}
	if n := w.writes.Load(); n < 1 || n > 201 {
		t.Errorf("unexpected write count %d", n)
	}

	// Saves after Close are dropped without panicking.
	w.Save(Default())
	w.Close()
}

func TestWriterSaveCopiesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	w := NewWriter(path)
	st := Default()
	st.ExpandedFolders = append(st.ExpandedFolders, "kept")
	w.Save(st)
	st.ExpandedFolders[0] = "mutated"
	w.Close()

	if got := Load(path); len(got.ExpandedFolders) != 1 || got.ExpandedFolders[0] != "kept" {
		t.Errorf("expected the saved snapshot to be isolated, got %+v", got.ExpandedFolders)
	}
}
