package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PinPickerModel is the pinned items modal.
type PinPickerModel struct {
	paths         []string
	selectedIndex int
	width         int
	height        int
	theme         Theme
}

// NewPinPickerModel creates a picker over paths, in pin order.
func NewPinPickerModel(paths []string, theme Theme) PinPickerModel {
	return PinPickerModel{
		paths: append([]string(nil), paths...),
		theme: theme,
	}
}

// SetSize updates the picker dimensions
func (m *PinPickerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// MoveUp moves selection up
func (m *PinPickerModel) MoveUp() {
	if m.selectedIndex > 0 {
		m.selectedIndex--
	}
}

// MoveDown moves selection down
func (m *PinPickerModel) MoveDown() {
	if m.selectedIndex < len(m.paths)-1 {
		m.selectedIndex++
	}
}

// Selected returns the highlighted path, or "" when nothing is pinned.
func (m *PinPickerModel) Selected() string {
	if m.selectedIndex >= 0 && m.selectedIndex < len(m.paths) {
		return m.paths[m.selectedIndex]
	}
	return ""
}

// Remove drops p from the list, keeping the selection in range.
func (m *PinPickerModel) Remove(p string) {
	kept := m.paths[:0]
	for _, q := range m.paths {
		if q != p {
			kept = append(kept, q)
		}
	}
	m.paths = kept
	if m.selectedIndex >= len(m.paths) {
		m.selectedIndex = len(m.paths) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

// Len returns the number of pinned paths.
func (m *PinPickerModel) Len() int {
	return len(m.paths)
}

// View renders the picker overlay
func (m *PinPickerModel) View() string {
	if m.width == 0 {
		m.width = 60
	}
	if m.height == 0 {
		m.height = 20
	}

	t := m.theme

	boxWidth := 50
	if m.width < 60 {
		boxWidth = m.width - 10
	}
	if boxWidth < 25 {
		boxWidth = 25
	}

	var lines []string

	titleStyle := t.Renderer.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		MarginBottom(1)
	lines = append(lines, titleStyle.Render("Pinned"))
	lines = append(lines, "")

	if len(m.paths) == 0 {
		lines = append(lines, t.MutedText.Render("Nothing pinned yet. Press s on an item."))
	}

	// Keep the selection on screen when the list is taller than the box.
	maxRows := m.height - 10
	if maxRows < 3 {
		maxRows = 3
	}
	start := 0
	if m.selectedIndex >= maxRows {
		start = m.selectedIndex - maxRows + 1
	}
	end := start + maxRows
	if end > len(m.paths) {
		end = len(m.paths)
	}

	for i := start; i < end; i++ {
		isSelected := i == m.selectedIndex

		itemStyle := t.Renderer.NewStyle()
		if isSelected {
			itemStyle = itemStyle.Foreground(t.Primary).Bold(true)
		} else {
			itemStyle = itemStyle.Foreground(t.Base.GetForeground())
		}

		prefix := "  "
		if isSelected {
			prefix = "> "
		}
		lines = append(lines, itemStyle.Render(prefix+truncate(m.paths[i], boxWidth-8)))
	}

	lines = append(lines, "")
	footerStyle := t.Renderer.NewStyle().
		Foreground(t.Secondary).
		Italic(true)
	lines = append(lines, footerStyle.Render("j/k: navigate | enter: reveal | u: unpin | esc: close"))

	content := strings.Join(lines, "\n")

	boxStyle := t.Renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(boxWidth)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		boxStyle.Render(content),
	)
}
