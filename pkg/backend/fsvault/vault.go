// Package fsvault stores a vault in a local directory.
//
// Every raw file operation the tree performs goes through this package.
// Listings hide the .nt state directory, dot entries unless asked otherwise,
// and names matching the ignore globs.
package fsvault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// StateDirName is the vault-local directory holding nt data.
const StateDirName = ".nt"

// Vault is a backend.Adapter over a directory on disk.
type Vault struct {
	root       string
	showHidden bool
	ignore     []string
}

// Option configures a Vault.
type Option func(*Vault)

// WithShowHidden lists dot files and folders. The .nt directory stays hidden.
func WithShowHidden(show bool) Option {
	return func(v *Vault) {
		v.showHidden = show
	}
}

// WithIgnore hides entries whose name matches any of the glob patterns.
func WithIgnore(patterns ...string) Option {
	return func(v *Vault) {
		v.ignore = append(v.ignore, patterns...)
	}
}

// New opens the vault rooted at dir.
func New(dir string, opts ...Option) (*Vault, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening vault: %s is not a directory", abs)
	}

	v := &Vault{root: abs}
	for _, opt := range opts {
		opt(v)
	}
	for _, pat := range v.ignore {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("bad ignore pattern %q: %w", pat, err)
		}
	}
	return v, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

// Describe names the vault for the status bar.
func (v *Vault) Describe() string {
	return v.root
}

// StateDir returns the vault-local .nt directory, creating it if needed.
func (v *Vault) StateDir() (string, error) {
	dir := filepath.Join(v.root, StateDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// OSPath converts a vault-relative path to a path on disk.
func (v *Vault) OSPath(rel string) (string, error) {
	if rel == model.RootPath {
		return v.root, nil
	}
	for _, part := range strings.Split(rel, model.Separator) {
		if !model.ValidName(part) {
			return "", fmt.Errorf("invalid path %q", rel)
		}
	}
	return filepath.Join(v.root, filepath.FromSlash(rel)), nil
}

// RelPath converts a path on disk back to a vault-relative path.
func (v *Vault) RelPath(osPath string) (string, bool) {
	rel, err := filepath.Rel(v.root, osPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return model.RootPath, true
	}
	return filepath.ToSlash(rel), true
}

// Hidden reports whether an entry name is excluded from listings.
func (v *Vault) Hidden(name string) bool {
	if name == StateDirName {
		return true
	}
	if !v.showHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pat := range v.ignore {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// ListDirectory returns the visible children of rel, folders first, then
// by case-insensitive name.
func (v *Vault) ListDirectory(ctx context.Context, rel string) (nodes []*model.TreeNode, err error) {
	defer v.observe("list", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, backend.Wrap("list", rel, err)
	}
	dir, err := v.OSPath(rel)
	if err != nil {
		return nil, backend.Wrap("list", rel, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, backend.Wrap("list", rel, mapErr(err))
	}

	nodes = make([]*model.TreeNode, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if v.Hidden(name) {
			continue
		}
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
				isDir = info.IsDir()
			}
		}
		n := &model.TreeNode{
			Name:  name,
			Path:  model.Join(rel, name),
			IsDir: isDir,
		}
		if isDir {
			n.HasChildren = v.hasVisibleEntries(filepath.Join(dir, name))
		}
		nodes = append(nodes, n)
	}

	sortNodes(nodes)
	debug.Log("fsvault: listed %q (%d entries)", rel, len(nodes))
	return nodes, nil
}

// hasVisibleEntries peeks into dir until it finds one listable entry.
func (v *Vault) hasVisibleEntries(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()

	for {
		names, err := f.Readdirnames(32)
		for _, name := range names {
			if !v.Hidden(name) {
				return true
			}
		}
		if err != nil {
			return false
		}
	}
}

func sortNodes(nodes []*model.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if la != lb {
			return la < lb
		}
		return a.Name < b.Name
	})
}

// CreateFile creates an empty note. It never overwrites an existing entry.
func (v *Vault) CreateFile(ctx context.Context, parent, name string) (rel string, err error) {
	defer v.observe("create_file", time.Now(), &err)
	rel = model.Join(parent, name)
	if err := ctx.Err(); err != nil {
		return "", backend.Wrap("create_file", rel, err)
	}
	path, err := v.childPath(parent, name)
	if err != nil {
		return "", backend.Wrap("create_file", rel, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", backend.Wrap("create_file", rel, mapErr(err))
	}
	if err := f.Close(); err != nil {
		return "", backend.Wrap("create_file", rel, err)
	}
	return rel, nil
}

// CreateFolder creates a single directory.
func (v *Vault) CreateFolder(ctx context.Context, parent, name string) (err error) {
	defer v.observe("create_folder", time.Now(), &err)
	rel := model.Join(parent, name)
	if err := ctx.Err(); err != nil {
		return backend.Wrap("create_folder", rel, err)
	}
	path, err := v.childPath(parent, name)
	if err != nil {
		return backend.Wrap("create_folder", rel, err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return backend.Wrap("create_folder", rel, mapErr(err))
	}
	return nil
}

// DeleteItem removes a file or a whole folder.
func (v *Vault) DeleteItem(ctx context.Context, rel string) (err error) {
	defer v.observe("delete", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return backend.Wrap("delete", rel, err)
	}
	if rel == model.RootPath {
		return backend.Wrap("delete", rel, backend.ErrPermission)
	}
	path, err := v.OSPath(rel)
	if err != nil {
		return backend.Wrap("delete", rel, err)
	}
	if _, err := os.Lstat(path); err != nil {
		return backend.Wrap("delete", rel, mapErr(err))
	}
	if err := os.RemoveAll(path); err != nil {
		return backend.Wrap("delete", rel, mapErr(err))
	}
	return nil
}

// RenameItem renames an entry within its folder.
func (v *Vault) RenameItem(ctx context.Context, oldRel, newName string) (res backend.RenameResult, err error) {
	defer v.observe("rename", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return res, backend.Wrap("rename", oldRel, err)
	}
	if oldRel == model.RootPath {
		return res, backend.Wrap("rename", oldRel, backend.ErrPermission)
	}
	src, err := v.OSPath(oldRel)
	if err != nil {
		return res, backend.Wrap("rename", oldRel, err)
	}
	info, err := os.Lstat(src)
	if err != nil {
		return res, backend.Wrap("rename", oldRel, mapErr(err))
	}
	newRel := model.Join(model.Parent(oldRel), newName)
	dst, err := v.childPath(model.Parent(oldRel), newName)
	if err != nil {
		return res, backend.Wrap("rename", oldRel, err)
	}
	if err := v.ensureFree(src, dst); err != nil {
		return res, backend.Wrap("rename", newRel, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return res, backend.Wrap("rename", oldRel, mapErr(err))
	}
	return backend.RenameResult{NewPath: newRel, IsDir: info.IsDir()}, nil
}

// MoveItem moves an entry into another folder, keeping its name.
func (v *Vault) MoveItem(ctx context.Context, srcRel, targetDir string) (res backend.MoveResult, err error) {
	defer v.observe("move", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return res, backend.Wrap("move", srcRel, err)
	}
	if srcRel == model.RootPath || model.IsSelfOrDescendant(targetDir, srcRel) {
		return res, backend.Wrap("move", srcRel, backend.ErrPermission)
	}
	src, err := v.OSPath(srcRel)
	if err != nil {
		return res, backend.Wrap("move", srcRel, err)
	}
	if _, err := os.Lstat(src); err != nil {
		return res, backend.Wrap("move", srcRel, mapErr(err))
	}
	newRel := model.Join(targetDir, model.Base(srcRel))
	dst, err := v.childPath(targetDir, model.Base(srcRel))
	if err != nil {
		return res, backend.Wrap("move", srcRel, err)
	}
	if err := v.ensureFree(src, dst); err != nil {
		return res, backend.Wrap("move", newRel, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return res, backend.Wrap("move", srcRel, mapErr(err))
	}
	return backend.MoveResult{NewPath: newRel}, nil
}

// childPath resolves parent/name after checking that parent is a folder.
func (v *Vault) childPath(parent, name string) (string, error) {
	if !model.ValidName(name) {
		return "", fmt.Errorf("invalid name %q", name)
	}
	dir, err := v.OSPath(parent)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", mapErr(err)
	}
	if !info.IsDir() {
		return "", backend.ErrNotDir
	}
	return filepath.Join(dir, name), nil
}

// ensureFree fails when dst already exists, unless it is src itself (a
// case-only rename on a case-insensitive filesystem).
func (v *Vault) ensureFree(src, dst string) error {
	dinfo, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return mapErr(err)
	}
	if sinfo, err := os.Lstat(src); err == nil && os.SameFile(sinfo, dinfo) {
		return nil
	}
	return backend.ErrExists
}

func (v *Vault) observe(op string, start time.Time, err *error) {
	metrics.RecordStorageOperation("fs", op, time.Since(start), *err == nil)
}

// mapErr converts os errors to the backend sentinels. The path is already
// carried by the BackendError, so the sentinel alone is enough.
func mapErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return backend.ErrNotFound
	case errors.Is(err, fs.ErrExist):
		return backend.ErrExists
	case errors.Is(err, fs.ErrPermission):
		return backend.ErrPermission
	case errors.Is(err, syscall.ENOTDIR):
		return backend.ErrNotDir
	}
	return err
}
