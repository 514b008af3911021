package backend

import (
	"errors"
	"testing"
)

func TestBackendErrorUnwrap(t *testing.T) {
	err := Wrap("list", "docs", ErrPermission)
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("expected errors.Is(ErrPermission), got %v", err)
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatal("expected *BackendError")
	}
	if be.Op != "list" || be.Path != "docs" {
		t.Errorf("unexpected fields: %+v", be)
	}
	if got := err.Error(); got != "list docs: permission denied" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestWrapNilAndIdempotent(t *testing.T) {
	if Wrap("list", "", nil) != nil {
		t.Error("expected nil for nil cause")
	}
	inner := Wrap("delete", "a", ErrNotFound)
	outer := Wrap("move", "b", inner)
	if outer != inner {
		t.Error("expected an existing BackendError to pass through unchanged")
	}
	if got := Wrap("list", "", ErrNotFound).Error(); got != "list /: no such file or directory" {
		t.Errorf("unexpected root message %q", got)
	}
}
