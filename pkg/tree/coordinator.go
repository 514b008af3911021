package tree

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/vanderheijden86/notetree/pkg/backend"
	"github.com/vanderheijden86/notetree/pkg/debug"
	"github.com/vanderheijden86/notetree/pkg/metrics"
	"github.com/vanderheijden86/notetree/pkg/model"
)

// DefaultNoteExtension is appended to note names that lack it.
const DefaultNoteExtension = ".md"

// Confirmer asks the user whether node may be deleted. A nil Confirmer
// refuses every delete.
type Confirmer func(node *model.TreeNode) bool

// Confirmed is a Confirmer for callers that already asked.
func Confirmed(*model.TreeNode) bool { return true }

// PinStore keeps the pinned items of a vault. Pins live outside the tree.
type PinStore interface {
	Pin(ctx context.Context, path string) error
	Unpin(ctx context.Context, path string) error
	List(ctx context.Context) ([]string, error)
}

// PinRemapper is implemented by pin stores that follow renames and deletes.
type PinRemapper interface {
	RemapPrefix(ctx context.Context, oldPrefix, newPrefix string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CreateResult describes a created note or folder.
type CreateResult struct {
	Parent string
	Node   *model.TreeNode
}

// DeleteResult lets the caller clear references to the deleted item.
type DeleteResult struct {
	Path  string
	IsDir bool
}

// Relocation is the outcome of a rename or move. Callers holding paths at
// or below OldPath remap them with model.RewritePrefix.
type Relocation struct {
	OldPath string
	NewPath string
	IsDir   bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNoteExtension sets the suffix enforced on note names. An empty
// extension disables the check.
func WithNoteExtension(ext string) CoordinatorOption {
	return func(c *Coordinator) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.noteExt = ext
	}
}

// WithPinStore enables Pin, Unpin and Pinned.
func WithPinStore(p PinStore) CoordinatorOption {
	return func(c *Coordinator) {
		c.pins = p
	}
}

// Coordinator applies mutations: it validates locally, calls the backend
// once, patches the store on success and reports what changed. Backend
// failures come back as *MutationError and leave the store untouched.
type Coordinator struct {
	store   *Store
	adapter backend.Adapter
	pins    PinStore
	noteExt string
}

// NewCoordinator creates a coordinator patching store after calls to adapter.
// Events go to the store's sink.
func NewCoordinator(store *Store, adapter backend.Adapter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   store,
		adapter: adapter,
		noteExt: DefaultNoteExtension,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NoteExtension returns the enforced note suffix.
func (c *Coordinator) NoteExtension() string {
	return c.noteExt
}

// CreateNote creates a note named name under parent, appending the note
// extension when missing.
func (c *Coordinator) CreateNote(ctx context.Context, parent, name string) (CreateResult, error) {
	return c.create(ctx, OpCreateNote, parent, name)
}

// CreateFolder creates a folder named name under parent.
func (c *Coordinator) CreateFolder(ctx context.Context, parent, name string) (CreateResult, error) {
	return c.create(ctx, OpCreateFolder, parent, name)
}

func (c *Coordinator) create(ctx context.Context, op Op, parent, name string) (CreateResult, error) {
	name, err := c.checkName(op, parent, name)
	if err != nil {
		return CreateResult{}, c.reject(err)
	}
	if err := c.checkDir(op, parent, ErrNotDirectory); err != nil {
		return CreateResult{}, c.reject(err)
	}
	isDir := op == OpCreateFolder
	if !isDir {
		name = c.withExtension(name)
	}

	start := time.Now()
	newPath := model.Join(parent, name)
	if isDir {
		err = c.adapter.CreateFolder(ctx, parent, name)
	} else {
		var p string
		p, err = c.adapter.CreateFile(ctx, parent, name)
		if p != "" {
			newPath = p
		}
	}
	metrics.RecordMutation(string(op), time.Since(start), err == nil)
	if err != nil {
		return CreateResult{}, &MutationError{Op: op, Path: model.Join(parent, name), Err: err}
	}

	node := &model.TreeNode{Name: model.Base(newPath), Path: newPath, IsDir: isDir}
	if perr := c.store.PatchAfterCreate(parent, node); perr != nil {
		c.inconsistent(perr)
		c.store.Invalidate(parent)
	} else {
		c.emit(StructureChanged{Paths: []string{parent}})
	}
	debug.Log("tree: created %q", newPath)
	return CreateResult{Parent: parent, Node: node}, nil
}

// Delete removes the item at p after confirm approves it. The root can
// never be deleted.
func (c *Coordinator) Delete(ctx context.Context, p string, confirm Confirmer) (DeleteResult, error) {
	if p == model.RootPath {
		return DeleteResult{}, c.reject(invalid(OpDelete, p, ErrRootProtected))
	}
	node, ok := c.store.Lookup(p)
	if !ok {
		return DeleteResult{}, c.reject(invalid(OpDelete, p, ErrUnknownPath))
	}
	if confirm == nil || !confirm(node) {
		return DeleteResult{}, c.reject(invalid(OpDelete, p, ErrCancelled))
	}

	start := time.Now()
	err := c.adapter.DeleteItem(ctx, p)
	metrics.RecordMutation(string(OpDelete), time.Since(start), err == nil)
	if err != nil {
		return DeleteResult{}, &MutationError{Op: OpDelete, Path: p, Err: err}
	}

	parent := model.Parent(p)
	if perr := c.store.PatchAfterDelete(p); perr != nil {
		c.inconsistent(perr)
	} else {
		c.emit(StructureChanged{Paths: []string{parent}})
	}
	c.dropPins(ctx, p)
	c.emit(ItemDeleted{Path: p, IsDir: node.IsDir})
	return DeleteResult{Path: p, IsDir: node.IsDir}, nil
}

// Rename gives the item at p a new name in the same folder. Notes keep the
// note extension.
func (c *Coordinator) Rename(ctx context.Context, p, newName string) (Relocation, error) {
	if p == model.RootPath {
		return Relocation{}, c.reject(invalid(OpRename, p, ErrRootProtected))
	}
	name, err := c.checkName(OpRename, p, newName)
	if err != nil {
		return Relocation{}, c.reject(err)
	}
	node, ok := c.store.Lookup(p)
	if !ok {
		return Relocation{}, c.reject(invalid(OpRename, p, ErrUnknownPath))
	}
	if !node.IsDir {
		name = c.withExtension(name)
	}
	if name == node.Name {
		return Relocation{}, c.reject(invalid(OpRename, p, ErrNoop))
	}

	start := time.Now()
	res, err := c.adapter.RenameItem(ctx, p, name)
	metrics.RecordMutation(string(OpRename), time.Since(start), err == nil)
	if err != nil {
		return Relocation{}, &MutationError{Op: OpRename, Path: p, Err: err}
	}
	newPath := res.NewPath
	if newPath == "" {
		newPath = model.Join(model.Parent(p), name)
	}

	parent := model.Parent(p)
	if perr := c.store.PatchAfterRename(p, newPath, node.IsDir); perr != nil {
		c.inconsistent(perr)
	} else {
		c.emit(StructureChanged{Paths: []string{parent}})
	}
	c.remapPins(ctx, p, newPath)
	c.emit(ItemRenamed{OldPath: p, NewPath: newPath, IsDir: node.IsDir})
	return Relocation{OldPath: p, NewPath: newPath, IsDir: node.IsDir}, nil
}

// Move relocates source into targetDir. A folder cannot be moved into itself
// or any of its descendants.
func (c *Coordinator) Move(ctx context.Context, source, targetDir string) (Relocation, error) {
	if source == model.RootPath {
		return Relocation{}, c.reject(invalid(OpMove, source, ErrRootProtected))
	}
	if model.IsSelfOrDescendant(targetDir, source) {
		return Relocation{}, c.reject(invalid(OpMove, source, ErrMoveIntoSelf))
	}
	node, ok := c.store.Lookup(source)
	if !ok {
		return Relocation{}, c.reject(invalid(OpMove, source, ErrUnknownPath))
	}
	if err := c.checkDir(OpMove, targetDir, ErrTargetNotDir); err != nil {
		return Relocation{}, c.reject(err)
	}
	if model.Parent(source) == targetDir {
		return Relocation{}, c.reject(invalid(OpMove, source, ErrNoop))
	}

	start := time.Now()
	res, err := c.adapter.MoveItem(ctx, source, targetDir)
	metrics.RecordMutation(string(OpMove), time.Since(start), err == nil)
	if err != nil {
		return Relocation{}, &MutationError{Op: OpMove, Path: source, Err: err}
	}
	newPath := res.NewPath
	if newPath == "" {
		newPath = model.Join(targetDir, node.Name)
	}

	oldParent := model.Parent(source)
	if perr := c.store.PatchAfterMoveTo(source, newPath, node.IsDir); perr != nil {
		c.inconsistent(perr)
	} else {
		c.emit(StructureChanged{Paths: []string{oldParent, model.Parent(newPath)}})
	}
	c.remapPins(ctx, source, newPath)
	c.emit(ItemMoved{OldPath: source, NewPath: newPath, IsDir: node.IsDir})
	return Relocation{OldPath: source, NewPath: newPath, IsDir: node.IsDir}, nil
}

// Pin marks the item at p as pinned.
func (c *Coordinator) Pin(ctx context.Context, p string) error {
	if c.pins == nil {
		return c.reject(invalid(OpPin, p, ErrPinsDisabled))
	}
	if p == model.RootPath {
		return c.reject(invalid(OpPin, p, ErrRootProtected))
	}
	if _, ok := c.store.Lookup(p); !ok {
		return c.reject(invalid(OpPin, p, ErrUnknownPath))
	}
	start := time.Now()
	err := c.pins.Pin(ctx, p)
	metrics.RecordMutation(string(OpPin), time.Since(start), err == nil)
	if err != nil {
		return &MutationError{Op: OpPin, Path: p, Err: err}
	}
	c.emit(PinsChanged{})
	return nil
}

// Unpin removes p from the pinned items. Paths that no longer exist in the
// tree can still be unpinned.
func (c *Coordinator) Unpin(ctx context.Context, p string) error {
	if c.pins == nil {
		return c.reject(invalid(OpUnpin, p, ErrPinsDisabled))
	}
	start := time.Now()
	err := c.pins.Unpin(ctx, p)
	metrics.RecordMutation(string(OpUnpin), time.Since(start), err == nil)
	if err != nil {
		return &MutationError{Op: OpUnpin, Path: p, Err: err}
	}
	c.emit(PinsChanged{})
	return nil
}

// Pinned lists pinned paths. Without a pin store the list is empty.
func (c *Coordinator) Pinned(ctx context.Context) ([]string, error) {
	if c.pins == nil {
		return nil, nil
	}
	return c.pins.List(ctx)
}

func (c *Coordinator) checkName(op Op, p, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid(op, p, ErrEmptyName)
	}
	if !model.ValidName(name) {
		return "", invalid(op, p, ErrInvalidName)
	}
	return name, nil
}

func (c *Coordinator) checkDir(op Op, p string, notDir error) error {
	n, ok := c.store.Lookup(p)
	if !ok {
		return invalid(op, p, ErrUnknownPath)
	}
	if !n.IsDir {
		return invalid(op, p, notDir)
	}
	return nil
}

func (c *Coordinator) withExtension(name string) string {
	if c.noteExt == "" || strings.HasSuffix(strings.ToLower(name), strings.ToLower(c.noteExt)) {
		return name
	}
	return name + c.noteExt
}

func (c *Coordinator) reject(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		metrics.RecordRejectedMutation(string(ve.Op))
	}
	return err
}

// inconsistent logs a failed patch and asks for a rebuild from whatever the
// cache now holds.
func (c *Coordinator) inconsistent(err error) {
	log.Printf("warning: %v", err)
	c.emit(StructureChanged{Paths: []string{model.RootPath}})
}

func (c *Coordinator) remapPins(ctx context.Context, oldPath, newPath string) {
	r, ok := c.pins.(PinRemapper)
	if !ok {
		return
	}
	if err := r.RemapPrefix(ctx, oldPath, newPath); err != nil {
		log.Printf("warning: could not update pins after moving %s: %v", oldPath, err)
		return
	}
	c.emit(PinsChanged{})
}

func (c *Coordinator) dropPins(ctx context.Context, p string) {
	r, ok := c.pins.(PinRemapper)
	if !ok {
		return
	}
	if err := r.DeletePrefix(ctx, p); err != nil {
		log.Printf("warning: could not update pins after deleting %s: %v", p, err)
		return
	}
	c.emit(PinsChanged{})
}

func (c *Coordinator) emit(ev Event) {
	c.store.sink.Emit(ev)
}
