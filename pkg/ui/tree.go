package ui

import (
	"strings"

	"github.com/vanderheijden86/notetree/pkg/model"
	"github.com/vanderheijden86/notetree/pkg/tree"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// TreeModel renders the workspace's visible list and owns the cursor. Each
// row is one terminal line; the viewport decides which rows exist.
type TreeModel struct {
	ws     *workspace.Workspace
	theme  Theme
	cursor int
	width  int
	height int

	pinned map[string]bool
	cut    string // path marked for a move, or ""
}

// NewTreeModel creates a tree view over ws.
func NewTreeModel(ws *workspace.Workspace, theme Theme) TreeModel {
	return TreeModel{
		ws:     ws,
		theme:  theme,
		pinned: make(map[string]bool),
	}
}

// SetSize updates the available dimensions and the viewport container.
func (t *TreeModel) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	t.width = width
	t.height = height
	vp := t.ws.Viewport()
	vp.Resize(height * vp.Window().ItemHeight)
	t.follow()
}

// Rows returns the visible list.
func (t *TreeModel) Rows() []tree.Row {
	return t.ws.Rows()
}

// Cursor returns the selected row index.
func (t *TreeModel) Cursor() int {
	return t.cursor
}

// SelectedRow returns the row under the cursor.
func (t *TreeModel) SelectedRow() (tree.Row, bool) {
	rows := t.Rows()
	if t.cursor >= 0 && t.cursor < len(rows) {
		return rows[t.cursor], true
	}
	return tree.Row{}, false
}

// SelectedPath returns the path under the cursor, or "" when the list is
// empty.
func (t *TreeModel) SelectedPath() string {
	if row, ok := t.SelectedRow(); ok {
		return row.Node.Path
	}
	return ""
}

// TargetDir is the folder new entries go into: the selected folder, the
// parent of the selected note, or the root.
func (t *TreeModel) TargetDir() string {
	row, ok := t.SelectedRow()
	switch {
	case !ok:
		return model.RootPath
	case row.Node.IsDir:
		return row.Node.Path
	default:
		return model.Parent(row.Node.Path)
	}
}

// MoveDown moves the cursor down.
func (t *TreeModel) MoveDown() {
	t.setCursor(t.cursor + 1)
}

// MoveUp moves the cursor up.
func (t *TreeModel) MoveUp() {
	t.setCursor(t.cursor - 1)
}

// PageDown moves the cursor down by half a screen.
func (t *TreeModel) PageDown() {
	t.setCursor(t.cursor + t.pageSize())
}

// PageUp moves the cursor up by half a screen.
func (t *TreeModel) PageUp() {
	t.setCursor(t.cursor - t.pageSize())
}

// JumpToTop moves the cursor to the first row.
func (t *TreeModel) JumpToTop() {
	t.setCursor(0)
}

// JumpToBottom moves the cursor to the last row.
func (t *TreeModel) JumpToBottom() {
	t.setCursor(len(t.Rows()) - 1)
}

// JumpToParent moves the cursor to the folder containing the selection.
// Top-level rows have no parent row.
func (t *TreeModel) JumpToParent() {
	p := t.SelectedPath()
	if p == "" {
		return
	}
	t.SelectByPath(model.Parent(p))
}

// FirstChild moves the cursor onto the first child of the selected folder
// if it is shown right below it. It reports whether the cursor moved.
func (t *TreeModel) FirstChild() bool {
	row, ok := t.SelectedRow()
	rows := t.Rows()
	if !ok || t.cursor+1 >= len(rows) {
		return false
	}
	next := rows[t.cursor+1]
	if next.Level != row.Level+1 || model.Parent(next.Node.Path) != row.Node.Path {
		return false
	}
	t.setCursor(t.cursor + 1)
	return true
}

// SelectByPath moves the cursor to p. Returns true if p is visible.
func (t *TreeModel) SelectByPath(p string) bool {
	if p == "" {
		return false
	}
	if i := t.ws.IndexOf(p); i >= 0 {
		t.setCursor(i)
		return true
	}
	return false
}

// SelectRow moves the cursor to visible row i.
func (t *TreeModel) SelectRow(i int) {
	t.setCursor(i)
}

// Reselect keeps the cursor on prev after the visible list changed. If prev
// is gone the cursor stays at the same index, clamped.
func (t *TreeModel) Reselect(prev string) {
	if !t.SelectByPath(prev) {
		t.setCursor(t.cursor)
	}
}

// KeepCursorInView moves the cursor into the rows on screen after a scroll
// that did not come from cursor movement.
func (t *TreeModel) KeepCursorInView() {
	first := t.ws.Viewport().FirstVisible()
	last := first + t.height - 1
	switch {
	case t.cursor < first:
		t.cursor = first
	case t.cursor > last:
		t.cursor = last
	}
	t.clamp()
}

// SetPinned replaces the set of pinned paths.
func (t *TreeModel) SetPinned(paths []string) {
	t.pinned = make(map[string]bool, len(paths))
	for _, p := range paths {
		t.pinned[p] = true
	}
}

// IsPinned reports whether p is pinned.
func (t *TreeModel) IsPinned(p string) bool {
	return t.pinned[p]
}

// SetCut marks p for a later move, or clears the mark with "".
func (t *TreeModel) SetCut(p string) {
	t.cut = p
}

// Cut returns the path marked for a move.
func (t *TreeModel) Cut() string {
	return t.cut
}

func (t *TreeModel) pageSize() int {
	n := t.height / 2
	if n < 1 {
		n = 5
	}
	return n
}

func (t *TreeModel) setCursor(i int) {
	t.cursor = i
	t.clamp()
	t.follow()
}

func (t *TreeModel) clamp() {
	n := len(t.Rows())
	if t.cursor >= n {
		t.cursor = n - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

// follow scrolls just enough to keep the cursor on screen.
func (t *TreeModel) follow() {
	t.ws.Viewport().ScrollToIndex(t.cursor)
}

// View renders the rows inside the container. The viewport materializes a
// buffer above and below the screen; only the on-screen part is drawn.
func (t *TreeModel) View() string {
	vp := t.ws.Viewport()
	rows := vp.Rows()
	if len(rows) == 0 {
		return t.renderEmptyState()
	}

	rng := vp.Range()
	first := vp.FirstVisible()
	start := first
	if start < rng.Start {
		start = rng.Start
	}
	end := first + t.height
	if end > rng.End {
		end = rng.End
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		sb.WriteString(t.renderRow(rows[i], i == t.cursor))
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (t *TreeModel) renderEmptyState() string {
	r := t.theme.Renderer
	var sb strings.Builder
	sb.WriteString(r.NewStyle().Foreground(t.theme.Primary).Bold(true).Render("Empty vault"))
	sb.WriteString("\n\n")
	sb.WriteString(t.theme.MutedText.Render("Press n for a new note or N for a new folder."))
	return sb.String()
}

// renderRow draws one row: indentation, expand indicator, name and markers.
func (t *TreeModel) renderRow(row tree.Row, selected bool) string {
	node := row.Node
	indent := strings.Repeat("  ", row.Level)
	indicator := t.expandIndicator(row)

	name := node.Name
	if node.IsDir {
		name += "/"
	}
	var marks string
	if t.pinned[node.Path] {
		marks += " ★"
	}
	if t.cut == node.Path {
		marks += " ✂"
	}

	avail := t.width - len(indent) - 2 - len([]rune(marks))
	if avail < 4 {
		avail = 4
	}
	name = truncate(name, avail)

	if selected {
		line := padRight(indent+indicator+" "+name+marks, t.width)
		return t.theme.Selected.Render(line)
	}

	var sb strings.Builder
	sb.WriteString(indent)
	sb.WriteString(t.theme.MutedText.Render(indicator))
	sb.WriteString(" ")
	switch {
	case t.cut == node.Path:
		sb.WriteString(t.theme.MutedText.Render(name))
	case node.IsDir:
		sb.WriteString(t.theme.FolderText.Render(name))
	default:
		sb.WriteString(t.theme.NoteText.Render(name))
	}
	if marks != "" {
		sb.WriteString(t.theme.PinMark.Render(marks))
	}
	return sb.String()
}

func (t *TreeModel) expandIndicator(row tree.Row) string {
	switch {
	case !row.Node.IsDir:
		return "•"
	case row.Expanded && t.ws.Store().IsLoading(row.Node.Path):
		return "…"
	case row.Expanded:
		return "▾"
	case row.Node.HasChildren:
		return "▸"
	default:
		return "▹"
	}
}
