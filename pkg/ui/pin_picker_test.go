package ui

import (
	"strings"
	"testing"
)

func TestPinPickerNavigation(t *testing.T) {
	picker := NewPinPickerModel([]string{"a.md", "docs", "docs/b.md"}, TestTheme())

	if picker.Selected() != "a.md" {
		t.Fatalf("expected first pin selected, got %q", picker.Selected())
	}
	picker.MoveUp()
	if picker.Selected() != "a.md" {
		t.Errorf("expected selection to stay at the top, got %q", picker.Selected())
	}
	picker.MoveDown()
	picker.MoveDown()
	picker.MoveDown()
	if picker.Selected() != "docs/b.md" {
		t.Errorf("expected selection to stop at the bottom, got %q", picker.Selected())
	}
}

func TestPinPickerRemove(t *testing.T) {
	picker := NewPinPickerModel([]string{"a.md", "b.md"}, TestTheme())
	picker.MoveDown()
	picker.Remove("b.md")
	if picker.Len() != 1 || picker.Selected() != "a.md" {
		t.Errorf("expected selection clamped to a.md, got %q (%d left)", picker.Selected(), picker.Len())
	}
	picker.Remove("a.md")
	if picker.Selected() != "" {
		t.Errorf("expected empty selection, got %q", picker.Selected())
	}
}

func TestPinPickerCopiesInput(t *testing.T) {
	paths := []string{"a.md"}
	picker := NewPinPickerModel(paths, TestTheme())
	picker.Remove("a.md")
	if paths[0] != "a.md" {
		t.Error("expected the caller's slice to be left alone")
	}
}

func TestPinPickerView(t *testing.T) {
	picker := NewPinPickerModel([]string{"notes/today.md"}, TestTheme())
	picker.SetSize(80, 24)
	view := picker.View()
	if !strings.Contains(view, "Pinned") || !strings.Contains(view, "notes/today.md") {
		t.Errorf("expected title and pin in view, got:\n%s", view)
	}

	empty := NewPinPickerModel(nil, TestTheme())
	if !strings.Contains(empty.View(), "Nothing pinned") {
		t.Error("expected empty-state hint")
	}
}
