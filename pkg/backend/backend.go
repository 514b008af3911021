// Package backend defines the boundary between the tree engine and whatever
// stores the vault. The engine never touches storage directly; every
// directory listing and mutation goes through an Adapter.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanderheijden86/notetree/pkg/model"
)

// Sentinel causes. Adapters wrap them in a BackendError so callers can use
// errors.Is regardless of the storage in use.
var (
	ErrNotFound   = errors.New("no such file or directory")
	ErrExists     = errors.New("already exists")
	ErrPermission = errors.New("permission denied")
	ErrNotDir     = errors.New("not a directory")
)

// BackendError is an I/O or RPC failure reported by an adapter. It is always
// recoverable from the tree's point of view.
type BackendError struct {
	Op   string // "list", "create_file", "create_folder", "delete", "rename", "move"
	Path string // vault-relative path the operation targeted
	Err  error  // underlying cause
}

func (e *BackendError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s /: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Wrap builds a BackendError, returning nil for a nil cause.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Path: path, Err: err}
}

// RenameResult is what a rename reports back.
type RenameResult struct {
	NewPath string
	IsDir   bool
}

// MoveResult is what a move reports back.
type MoveResult struct {
	NewPath string
}

// Adapter is the persistence contract the tree engine consumes. The vault
// root is bound when the adapter is constructed, so every path here is
// vault-relative and '/' separated.
//
// ListDirectory must return children in display order; the engine does not
// re-sort.
type Adapter interface {
	ListDirectory(ctx context.Context, relPath string) ([]*model.TreeNode, error)
	CreateFile(ctx context.Context, parentPath, name string) (string, error)
	CreateFolder(ctx context.Context, parentPath, name string) error
	DeleteItem(ctx context.Context, relPath string) error
	RenameItem(ctx context.Context, oldPath, newName string) (RenameResult, error)
	MoveItem(ctx context.Context, sourcePath, targetDir string) (MoveResult, error)
}

// Describer is implemented by adapters that can name their storage for the UI.
type Describer interface {
	Describe() string
}
