// Package state persists per-vault UI state between sessions.
//
// File format (JSON), one file per vault under the XDG state directory:
//
//	{
//	  "version": 1,
//	  "expandedFolders": ["docs", "docs/2026"],
//	  "lastFolder": "docs/2026",
//	  "lastFile": "docs/2026/plan.md"
//	}
//
// A missing or corrupt file means "start collapsed"; it is never fatal.
package state

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// Version is the current schema version.
const Version = 1

// State is the persisted UI state of one vault.
type State struct {
	Version         int      `json:"version"`
	ExpandedFolders []string `json:"expandedFolders"`
	LastFolder      string   `json:"lastFolder"`
	LastFile        string   `json:"lastFile"`
}

// Default returns an empty state.
func Default() *State {
	return &State{Version: Version, ExpandedFolders: []string{}}
}

// Path returns the state file for a vault key inside stateDir.
func Path(stateDir, vaultKey string) string {
	return filepath.Join(stateDir, vaultKey+".json")
}

// RestoreOrder returns the expanded folders deduplicated and sorted so that
// every parent comes before its children.
func (s *State) RestoreOrder() []string {
	seen := make(map[string]bool, len(s.ExpandedFolders))
	out := make([]string, 0, len(s.ExpandedFolders))
	for _, p := range s.ExpandedFolders {
		if p == model.RootPath || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := model.Depth(out[i]), model.Depth(out[j])
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	return out
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.ExpandedFolders = append([]string(nil), s.ExpandedFolders...)
	return &c
}

// Load reads the state file. Missing files and unreadable content both
// yield Default; the latter is logged.
func Load(path string) *State {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: cannot read UI state %s: %v", path, err)
		}
		return Default()
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("warning: invalid UI state file, starting fresh: %v", err)
		return Default()
	}
	if st.Version > Version {
		log.Printf("warning: UI state %s has newer version %d, starting fresh", path, st.Version)
		return Default()
	}
	if st.ExpandedFolders == nil {
		st.ExpandedFolders = []string{}
	}
	st.Version = Version
	return &st
}

// Save writes st to path atomically.
func Save(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling UI state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("writing UI state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing UI state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing UI state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing UI state: %w", err)
	}
	return nil
}

// Writer saves state on a background goroutine. Saves queued while a write
// is in progress collapse into one write of the latest state, so callers
// never block on disk.
type Writer struct {
	path string

	mu      sync.Mutex
	pending *State
	closed  bool

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	writes atomic.Int64
}

// NewWriter starts a writer for path.
func NewWriter(path string) *Writer {
	w := &Writer{
		path: path,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Save queues st for writing and returns immediately.
func (w *Writer) Save(st *State) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		debug.Log("state: save after close dropped")
		return
	}
	w.pending = st.Clone()
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close writes any pending state and stops the writer.
func (w *Writer) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.stop:
			w.flush()
			return
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	st := w.pending
	w.pending = nil
	w.mu.Unlock()
	if st == nil {
		return
	}
	if err := Save(w.path, st); err != nil {
		log.Printf("warning: %v", err)
		return
	}
	w.writes.Add(1)
	debug.Log("state: wrote %s (%d expanded)", w.path, len(st.ExpandedFolders))
}
