package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/notetree/pkg/model"
	"github.com/vanderheijden86/notetree/pkg/tree"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// DefaultOpTimeout bounds one backend call made from the UI.
const DefaultOpTimeout = 30 * time.Second

// VaultOperation represents the type of vault operation performed
type VaultOperation int

const (
	VaultOpCreateNote VaultOperation = iota
	VaultOpCreateFolder
	VaultOpRename
	VaultOpMove
	VaultOpDelete
	VaultOpPin
	VaultOpUnpin
	VaultOpToggle
	VaultOpReload
	VaultOpCollapse
)

func (op VaultOperation) String() string {
	switch op {
	case VaultOpCreateNote:
		return "create note"
	case VaultOpCreateFolder:
		return "create folder"
	case VaultOpRename:
		return "rename"
	case VaultOpMove:
		return "move"
	case VaultOpDelete:
		return "delete"
	case VaultOpPin:
		return "pin"
	case VaultOpUnpin:
		return "unpin"
	case VaultOpToggle:
		return "toggle"
	case VaultOpReload:
		return "reload"
	case VaultOpCollapse:
		return "collapse"
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// VaultResultMsg is returned after a vault operation completes.
type VaultResultMsg struct {
	Operation VaultOperation
	Path      string
	NewPath   string // created or relocated path, "" otherwise
	Err       error
}

// PinsLoadedMsg carries the pinned paths.
type PinsLoadedMsg struct {
	Paths     []string
	Err       error
	ForPicker bool
}

// RevealedMsg is returned once every ancestor of Path is expanded.
type RevealedMsg struct {
	Path string
	Err  error
}

// VaultWriter runs workspace mutations as tea.Cmds so backend calls never
// block the render loop.
type VaultWriter struct {
	ws      *workspace.Workspace
	timeout time.Duration
}

// NewVaultWriter creates a writer for ws.
func NewVaultWriter(ws *workspace.Workspace) *VaultWriter {
	return &VaultWriter{ws: ws, timeout: DefaultOpTimeout}
}

// CreateNote creates a note named name in parent.
func (w *VaultWriter) CreateNote(parent, name string) tea.Cmd {
	return w.run(VaultOpCreateNote, parent, func(ctx context.Context) (string, error) {
		res, err := w.ws.CreateNote(ctx, parent, name)
		if err != nil {
			return "", err
		}
		return res.Node.Path, nil
	})
}

// CreateFolder creates a folder named name in parent.
func (w *VaultWriter) CreateFolder(parent, name string) tea.Cmd {
	return w.run(VaultOpCreateFolder, parent, func(ctx context.Context) (string, error) {
		res, err := w.ws.CreateFolder(ctx, parent, name)
		if err != nil {
			return "", err
		}
		return res.Node.Path, nil
	})
}

// Rename renames p to newName.
func (w *VaultWriter) Rename(p, newName string) tea.Cmd {
	return w.run(VaultOpRename, p, func(ctx context.Context) (string, error) {
		res, err := w.ws.Rename(ctx, p, newName)
		return res.NewPath, err
	})
}

// Move moves p into targetDir.
func (w *VaultWriter) Move(p, targetDir string) tea.Cmd {
	return w.run(VaultOpMove, p, func(ctx context.Context) (string, error) {
		res, err := w.ws.Move(ctx, p, targetDir)
		return res.NewPath, err
	})
}

// Delete removes p. The caller has already asked the user.
func (w *VaultWriter) Delete(p string) tea.Cmd {
	return w.run(VaultOpDelete, p, func(ctx context.Context) (string, error) {
		_, err := w.ws.Delete(ctx, p, tree.Confirmed)
		return "", err
	})
}

// TogglePin pins p, or unpins it when pinned is true.
func (w *VaultWriter) TogglePin(p string, pinned bool) tea.Cmd {
	if pinned {
		return w.run(VaultOpUnpin, p, func(ctx context.Context) (string, error) {
			return "", w.ws.Coordinator().Unpin(ctx, p)
		})
	}
	return w.run(VaultOpPin, p, func(ctx context.Context) (string, error) {
		return "", w.ws.Coordinator().Pin(ctx, p)
	})
}

// Toggle expands or collapses folder p. Listing failures also arrive as a
// LoadFailed event, so they are not reported twice.
func (w *VaultWriter) Toggle(p string) tea.Cmd {
	return w.run(VaultOpToggle, p, func(ctx context.Context) (string, error) {
		err := w.ws.Store().ToggleExpand(ctx, p)
		var lerr *tree.ListingError
		if errors.As(err, &lerr) {
			return "", nil
		}
		return "", err
	})
}

// Collapse folds folder p. A listing of p still in flight is cached when it
// lands but does not expand p again.
func (w *VaultWriter) Collapse(p string) tea.Cmd {
	return w.run(VaultOpCollapse, p, func(ctx context.Context) (string, error) {
		w.ws.Store().Collapse(p)
		return "", nil
	})
}

// Reload lists every cached folder again.
func (w *VaultWriter) Reload() tea.Cmd {
	return w.run(VaultOpReload, model.RootPath, func(ctx context.Context) (string, error) {
		w.ws.RefreshDirs(ctx, w.ws.Store().LoadedPaths())
		return "", nil
	})
}

// LoadPins reads the pinned paths.
func (w *VaultWriter) LoadPins(forPicker bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		paths, err := w.ws.Coordinator().Pinned(ctx)
		return PinsLoadedMsg{Paths: paths, Err: err, ForPicker: forPicker}
	}
}

// Reveal expands every ancestor of p, parent first, so p becomes visible.
func (w *VaultWriter) Reveal(p string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		for _, a := range model.Ancestors(p) {
			if a == model.RootPath {
				continue
			}
			if err := w.ws.Store().Expand(ctx, a); err != nil {
				return RevealedMsg{Path: p, Err: err}
			}
		}
		if _, ok := w.ws.Store().Lookup(p); !ok {
			return RevealedMsg{Path: p, Err: fmt.Errorf("%s no longer exists", p)}
		}
		return RevealedMsg{Path: p}
	}
}

// run executes fn asynchronously and returns the result
func (w *VaultWriter) run(op VaultOperation, p string, fn func(context.Context) (string, error)) tea.Cmd {
	timeout := w.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		newPath, err := fn(ctx)
		return VaultResultMsg{Operation: op, Path: p, NewPath: newPath, Err: err}
	}
}
