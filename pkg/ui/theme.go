package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Entries
	Folder lipgloss.AdaptiveColor
	Note   lipgloss.AdaptiveColor
	Pinned lipgloss.AdaptiveColor
	Error  lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base      lipgloss.Style
	Selected  lipgloss.Style
	Header    lipgloss.Style
	StatusBar lipgloss.Style

	// Row styles, built once instead of per frame.
	FolderText lipgloss.Style
	NoteText   lipgloss.Style
	MutedText  lipgloss.Style
	PinMark    lipgloss.Style
	ErrorText  lipgloss.Style
	InfoText   lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Folder: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Note:   lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"},
		Pinned: lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"},
		Error:  lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle().Foreground(t.Note)

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.StatusBar = r.NewStyle().Foreground(t.Subtext)

	t.FolderText = r.NewStyle().Foreground(t.Folder).Bold(true)
	t.NoteText = r.NewStyle().Foreground(t.Note)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.PinMark = r.NewStyle().Foreground(t.Pinned)
	t.ErrorText = r.NewStyle().Foreground(t.Error).Bold(true)
	t.InfoText = r.NewStyle().Foreground(t.Secondary)

	return t
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
