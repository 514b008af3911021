package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// promptKind says what a submitted prompt does.
type promptKind int

const (
	promptNewNote promptKind = iota
	promptNewFolder
	promptRename
	promptFilter
)

// namePrompt is the one-line input used for names and the filter query.
type namePrompt struct {
	kind   promptKind
	target string // parent folder for creates, the entry for renames
	input  textinput.Model
}

func newNamePrompt(kind promptKind, target, value string) namePrompt {
	ti := textinput.New()
	ti.CharLimit = 255
	ti.Width = 40
	switch kind {
	case promptNewNote:
		ti.Placeholder = "note name"
	case promptNewFolder:
		ti.Placeholder = "folder name"
	case promptFilter:
		ti.Placeholder = "type to filter..."
	}
	ti.SetValue(value)
	ti.CursorEnd()
	ti.Focus()
	return namePrompt{kind: kind, target: target, input: ti}
}

// Title is the label shown before the input.
func (p namePrompt) Title() string {
	switch p.kind {
	case promptNewNote:
		return "New note in " + displayDir(p.target) + ":"
	case promptNewFolder:
		return "New folder in " + displayDir(p.target) + ":"
	case promptRename:
		return "Rename " + p.target + " to:"
	default:
		return "Filter:"
	}
}

func (p namePrompt) Value() string {
	return p.input.Value()
}

func (p namePrompt) Update(msg tea.Msg) (namePrompt, tea.Cmd) {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p namePrompt) View() string {
	return p.input.View()
}

func displayDir(p string) string {
	if p == "" {
		return "/"
	}
	return p + "/"
}
