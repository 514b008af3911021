package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/notetree/pkg/backend"
)

// Validation causes. They are detected before any backend call.
var (
	ErrRootProtected = errors.New("the vault root cannot be changed")
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrInvalidName   = errors.New("name cannot contain path separators")
	ErrMoveIntoSelf  = errors.New("cannot move a folder into itself or one of its subfolders")
	ErrTargetNotDir  = errors.New("move target is not a folder")
	ErrNotDirectory  = errors.New("not a folder")
	ErrUnknownPath   = errors.New("item is not loaded")
	ErrCancelled     = errors.New("cancelled")
	ErrNoop          = errors.New("nothing to change")
	ErrPinsDisabled  = errors.New("pinning is not available for this vault")
)

// ValidationError reports an operation rejected locally. No state changed
// and no backend call was made.
type ValidationError struct {
	Op   Op
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(op Op, path string, err error) error {
	return &ValidationError{Op: op, Path: path, Err: err}
}

// ListingError reports a failed directory load. The directory is left
// collapsed and the rest of the tree is unaffected.
type ListingError struct {
	Path string
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("cannot list %s: %v", displayPath(e.Path), e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports a patch whose target did not match the cache.
// It is logged and the view rebuilds from whatever the cache holds.
type ConsistencyError struct {
	Op     string
	Path   string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent %s patch for %s: %s", e.Op, displayPath(e.Path), e.Detail)
}

// MutationError is what the coordinator returns when the backend rejects
// an operation. The tree was not modified.
type MutationError struct {
	Op   Op
	Path string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, displayPath(e.Path), e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// UserMessage returns a one-line message suitable for a status bar.
func (e *MutationError) UserMessage() string {
	verb := e.Op.Verb()
	switch {
	case errors.Is(e.Err, backend.ErrExists):
		return fmt.Sprintf("Could not %s %s: an item with that name already exists", verb, displayPath(e.Path))
	case errors.Is(e.Err, backend.ErrNotFound):
		return fmt.Sprintf("Could not %s %s: it no longer exists", verb, displayPath(e.Path))
	case errors.Is(e.Err, backend.ErrPermission):
		return fmt.Sprintf("Could not %s %s: permission denied", verb, displayPath(e.Path))
	}
	cause := e.Err
	var be *backend.BackendError
	if errors.As(cause, &be) {
		cause = be.Err
	}
	return fmt.Sprintf("Could not %s %s: %v", verb, displayPath(e.Path), cause)
}

// UserMessage renders any error returned by this package for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var me *MutationError
	if errors.As(err, &me) {
		return me.UserMessage()
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		msg := ve.Err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	}
	return err.Error()
}

func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
