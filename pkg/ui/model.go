// Package ui is the terminal front end of a vault: a bubbletea model that
// renders the workspace's virtual list and turns keys into tree operations.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/notetree/pkg/model"
	"github.com/vanderheijden86/notetree/pkg/tree"
	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// Lines taken by the header, status and footer.
const (
	headerHeight = 1
	chromeHeight = 3
)

// wheelStep is how many rows one wheel notch scrolls.
const wheelStep = 3

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

type mode int

const (
	modeTree mode = iota
	modePrompt
	modeConfirm
	modePins
	modeHelp
)

// TreeEventMsg carries one tree event from the workspace to the update loop.
type TreeEventMsg struct {
	Event tree.Event
}

// ScrollSettledMsg is sent on the trailing edge of the scroll throttle.
type ScrollSettledMsg struct{}

// Option configures a Model.
type Option func(*Model)

// WithWorker attaches the filesystem change worker.
func WithWorker(w *BackgroundWorker) Option {
	return func(m *Model) {
		m.worker = w
	}
}

// WithTheme overrides the default theme.
func WithTheme(t Theme) Option {
	return func(m *Model) {
		m.theme = t
	}
}

// Model is the root bubbletea model.
type Model struct {
	ws     *workspace.Workspace
	tree   TreeModel
	writer *VaultWriter
	worker *BackgroundWorker
	theme  Theme
	keys   keyMap

	width  int
	height int
	mode   mode

	prompt  namePrompt
	confirm *deleteConfirm
	pins    PinPickerModel

	scrollCh chan struct{}

	statusMsg     string
	statusIsError bool
	quitting      bool
}

// NewModel builds the UI for an opened workspace and puts the cursor on the
// last selection.
func NewModel(ws *workspace.Workspace, opts ...Option) Model {
	m := Model{
		ws:       ws,
		writer:   NewVaultWriter(ws),
		keys:     defaultKeyMap,
		scrollCh: make(chan struct{}, 1),
	}
	m.theme = DefaultTheme(lipgloss.DefaultRenderer())
	for _, opt := range opts {
		opt(&m)
	}
	m.tree = NewTreeModel(ws, m.theme)
	m.pins = NewPinPickerModel(nil, m.theme)
	m.tree.SelectByPath(ws.LastSelection())
	return m
}

// Init starts the event, scroll and watcher pumps and loads the pin marks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.waitForScroll(),
		m.worker.WaitForChanges(),
		m.writer.LoadPins(false),
	)
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.ws.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return TreeEventMsg{Event: ev}
	}
}

func (m Model) waitForScroll() tea.Cmd {
	ch := m.scrollCh
	return func() tea.Msg {
		<-ch
		return ScrollSettledMsg{}
	}
}

func (m Model) notifyScroll() func() {
	ch := m.scrollCh
	return func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TreeEventMsg:
		cmd := m.applyEvent(msg.Event)
		return m, tea.Batch(cmd, m.waitForEvent())

	case ScrollSettledMsg:
		m.ws.ApplyScroll()
		m.tree.KeepCursorInView()
		m.selectionChanged()
		return m, m.waitForScroll()

	case VaultResultMsg:
		return m.handleResult(msg)

	case PinsLoadedMsg:
		if msg.Err != nil {
			m.setError(tree.UserMessage(msg.Err))
			return m, nil
		}
		m.tree.SetPinned(msg.Paths)
		if msg.ForPicker {
			m.pins = NewPinPickerModel(msg.Paths, m.theme)
			m.pins.SetSize(m.width, m.treeHeight())
			m.mode = modePins
		}
		return m, nil

	case RevealedMsg:
		if msg.Err != nil {
			m.setError(tree.UserMessage(msg.Err))
			return m, nil
		}
		if m.ws.Filtering() {
			m.ws.ClearFilter()
		}
		m.ws.Refresh()
		m.tree.SelectByPath(msg.Path)
		m.selectionChanged()
		return m, nil

	case DirsChangedMsg:
		return m, tea.Batch(m.worker.Refresh(msg.Dirs), m.worker.WaitForChanges())

	case DirsRefreshedMsg:
		return m, nil

	case WorkerErrorMsg:
		m.setError(fmt.Sprintf("Watcher: %v", msg.Err.Cause))
		if msg.Err.Phase == "watch" {
			return m, m.worker.WaitForChanges()
		}
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// The confirm form and the prompt cursor run on their own messages.
	switch m.mode {
	case modeConfirm:
		return m.updateConfirm(msg)
	case modePrompt:
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.tree.SetSize(width, m.treeHeight())
	m.pins.SetSize(width, m.treeHeight())
}

func (m Model) treeHeight() int {
	h := m.height - chromeHeight
	if h < 1 {
		h = 1
	}
	return h
}

// applyEvent folds ev into the visible list and keeps the cursor on the
// same entry, following it through renames and moves.
func (m *Model) applyEvent(ev tree.Event) tea.Cmd {
	prev := m.tree.SelectedPath()
	note := m.ws.Apply(ev)

	var cmd tea.Cmd
	switch e := ev.(type) {
	case tree.StructureChanged:
		cmd = m.worker.SyncCmd()
	case tree.ItemRenamed:
		prev, _ = model.RewritePrefix(prev, e.OldPath, e.NewPath)
		m.remapCut(e.OldPath, e.NewPath)
	case tree.ItemMoved:
		prev, _ = model.RewritePrefix(prev, e.OldPath, e.NewPath)
		m.remapCut(e.OldPath, e.NewPath)
	case tree.ItemDeleted:
		if cut := m.tree.Cut(); cut != "" && model.IsSelfOrDescendant(cut, e.Path) {
			m.tree.SetCut("")
		}
	case tree.PinsChanged:
		cmd = m.writer.LoadPins(false)
	}

	m.tree.Reselect(prev)
	if note != "" {
		m.setError(note)
	}
	return cmd
}

func (m *Model) remapCut(oldPath, newPath string) {
	if cut, ok := model.RewritePrefix(m.tree.Cut(), oldPath, newPath); ok {
		m.tree.SetCut(cut)
	}
}

func (m Model) handleResult(msg VaultResultMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setError(tree.UserMessage(msg.Err))
		return m, nil
	}
	switch msg.Operation {
	case VaultOpCreateNote, VaultOpCreateFolder:
		m.ws.Refresh()
		m.tree.SelectByPath(msg.NewPath)
		m.selectionChanged()
		m.setInfo("Created " + msg.NewPath)
	case VaultOpRename, VaultOpMove:
		m.ws.Refresh()
		m.tree.SelectByPath(msg.NewPath)
		m.selectionChanged()
		verb := "Renamed"
		if msg.Operation == VaultOpMove {
			verb = "Moved"
		}
		m.setInfo(fmt.Sprintf("%s %s → %s", verb, msg.Path, msg.NewPath))
	case VaultOpDelete:
		m.ws.Refresh()
		m.tree.Reselect("")
		m.selectionChanged()
		m.setInfo("Deleted " + msg.Path)
	case VaultOpPin:
		m.setInfo("Pinned " + msg.Path)
	case VaultOpUnpin:
		m.pins.Remove(msg.Path)
		m.setInfo("Unpinned " + msg.Path)
	case VaultOpReload:
		prev := m.tree.SelectedPath()
		m.ws.Refresh()
		m.tree.Reselect(prev)
		m.selectionChanged()
		m.setInfo("Reloaded")
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeTree || msg.Action != tea.MouseActionPress {
		return m, nil
	}
	itemHeight := m.ws.Viewport().Window().ItemHeight
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.ws.RequestScroll(-wheelStep*itemHeight, m.notifyScroll())
	case tea.MouseButtonWheelDown:
		m.ws.RequestScroll(wheelStep*itemHeight, m.notifyScroll())
	case tea.MouseButtonLeft:
		i := m.ws.Viewport().IndexAt((msg.Y - headerHeight) * itemHeight)
		if i < 0 || msg.Y-headerHeight >= m.treeHeight() {
			return m, nil
		}
		m.tree.SelectRow(i)
		m.selectionChanged()
		if row, ok := m.tree.SelectedRow(); ok && row.Node.IsDir {
			return m, m.writer.Toggle(row.Node.Path)
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.mode {
	case modeConfirm:
		return m.updateConfirm(msg)
	case modePrompt:
		return m.updatePrompt(msg)
	case modePins:
		return m.updatePins(msg)
	case modeHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.mode = modeTree
		}
		return m, nil
	}

	m.statusMsg = ""
	row, hasRow := m.tree.SelectedRow()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.tree.MoveUp()
		m.selectionChanged()
	case key.Matches(msg, m.keys.Down):
		m.tree.MoveDown()
		m.selectionChanged()
	case key.Matches(msg, m.keys.PageUp):
		m.tree.PageUp()
		m.selectionChanged()
	case key.Matches(msg, m.keys.PageDown):
		m.tree.PageDown()
		m.selectionChanged()
	case key.Matches(msg, m.keys.Top):
		m.tree.JumpToTop()
		m.selectionChanged()
	case key.Matches(msg, m.keys.Bottom):
		m.tree.JumpToBottom()
		m.selectionChanged()

	case key.Matches(msg, m.keys.Toggle):
		if hasRow && row.Node.IsDir {
			return m, m.writer.Toggle(row.Node.Path)
		}
	case key.Matches(msg, m.keys.Expand):
		if !hasRow || !row.Node.IsDir {
			return m, nil
		}
		if row.Expanded {
			if m.tree.FirstChild() {
				m.selectionChanged()
			}
			return m, nil
		}
		return m, m.writer.Toggle(row.Node.Path)
	case key.Matches(msg, m.keys.Collapse):
		// The row lags behind an expansion whose listing is still loading.
		if hasRow && row.Node.IsDir && (row.Expanded || m.ws.Store().IsExpanded(row.Node.Path)) {
			return m, m.writer.Collapse(row.Node.Path)
		}
		m.tree.JumpToParent()
		m.selectionChanged()

	case key.Matches(msg, m.keys.NewNote):
		return m.openPrompt(promptNewNote, m.tree.TargetDir(), "")
	case key.Matches(msg, m.keys.NewFolder):
		return m.openPrompt(promptNewFolder, m.tree.TargetDir(), "")
	case key.Matches(msg, m.keys.Rename):
		if hasRow {
			return m.openPrompt(promptRename, row.Node.Path, row.Node.Name)
		}
	case key.Matches(msg, m.keys.Delete):
		if hasRow {
			m.confirm = newDeleteConfirm(row)
			m.mode = modeConfirm
			return m, m.confirm.Init()
		}

	case key.Matches(msg, m.keys.Cut):
		if hasRow {
			m.tree.SetCut(row.Node.Path)
			m.setInfo(fmt.Sprintf("Cut %s: select a folder and press p", row.Node.Path))
		}
	case key.Matches(msg, m.keys.Paste):
		cut := m.tree.Cut()
		if cut == "" {
			m.setError("Nothing to move. Press x on an item first.")
			return m, nil
		}
		m.tree.SetCut("")
		return m, m.writer.Move(cut, m.tree.TargetDir())

	case key.Matches(msg, m.keys.Pin):
		if hasRow {
			return m, m.writer.TogglePin(row.Node.Path, m.tree.IsPinned(row.Node.Path))
		}
	case key.Matches(msg, m.keys.Pins):
		return m, m.writer.LoadPins(true)

	case key.Matches(msg, m.keys.Yank):
		if hasRow {
			if err := writeClipboard(row.Node.Path); err != nil {
				m.setError(fmt.Sprintf("Clipboard error: %v", err))
			} else {
				m.setInfo("Copied " + row.Node.Path)
			}
		}

	case key.Matches(msg, m.keys.Filter):
		return m.openPrompt(promptFilter, "", m.ws.FilterQuery())
	case key.Matches(msg, m.keys.Refresh):
		return m, m.writer.Reload()
	case key.Matches(msg, m.keys.Help):
		m.mode = modeHelp
	case key.Matches(msg, m.keys.Back):
		if m.ws.Filtering() {
			m.clearFilter()
		}
	}
	return m, nil
}

func (m Model) openPrompt(kind promptKind, target, value string) (tea.Model, tea.Cmd) {
	m.prompt = newNamePrompt(kind, target, value)
	m.mode = modePrompt
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.prompt.kind == promptFilter {
			m.clearFilter()
		}
		m.mode = modeTree
		return m, nil

	case tea.KeyEnter:
		m.mode = modeTree
		value := strings.TrimSpace(m.prompt.Value())
		switch m.prompt.kind {
		case promptNewNote:
			return m, m.writer.CreateNote(m.prompt.target, value)
		case promptNewFolder:
			return m, m.writer.CreateFolder(m.prompt.target, value)
		case promptRename:
			return m, m.writer.Rename(m.prompt.target, value)
		case promptFilter:
			if value == "" {
				m.clearFilter()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	if m.prompt.kind == promptFilter {
		m.applyFilter(m.prompt.Value())
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.mode = modeTree
		return m, nil
	}
	done, confirmed, cmd := m.confirm.Update(msg)
	if !done {
		return m, cmd
	}
	return m.resolveDelete(confirmed)
}

// resolveDelete closes the dialog and runs the delete if it was confirmed.
func (m Model) resolveDelete(confirmed bool) (tea.Model, tea.Cmd) {
	c := m.confirm
	m.confirm = nil
	m.mode = modeTree
	if c == nil || !confirmed {
		m.setInfo("Delete cancelled")
		return m, nil
	}
	return m, m.writer.Delete(c.path)
}

func (m Model) updatePins(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.pins.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.pins.MoveDown()
	case key.Matches(msg, m.keys.Toggle):
		p := m.pins.Selected()
		m.mode = modeTree
		if p != "" {
			return m, m.writer.Reveal(p)
		}
	case msg.String() == "u":
		if p := m.pins.Selected(); p != "" {
			return m, m.writer.TogglePin(p, true)
		}
	case key.Matches(msg, m.keys.Back, m.keys.Pins, m.keys.Quit):
		m.mode = modeTree
	}
	return m, nil
}

func (m *Model) applyFilter(query string) {
	n := m.ws.Filter(query)
	m.tree.JumpToTop()
	if m.ws.Filtering() {
		m.setInfo(fmt.Sprintf("%d match(es)", n))
	} else {
		m.statusMsg = ""
	}
}

func (m *Model) clearFilter() {
	prev := m.tree.SelectedPath()
	m.ws.ClearFilter()
	m.tree.Reselect(prev)
	m.statusMsg = ""
}

// selectionChanged records the cursor row as the last selection.
func (m *Model) selectionChanged() {
	if row, ok := m.tree.SelectedRow(); ok {
		m.ws.Select(row)
	}
}

func (m *Model) setError(msg string) {
	m.statusMsg = msg
	m.statusIsError = true
}

func (m *Model) setInfo(msg string) {
	m.statusMsg = msg
	m.statusIsError = false
}

// Status returns the current status line text.
func (m Model) Status() string {
	return m.statusMsg
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	h := m.treeHeight()
	var body string
	switch m.mode {
	case modeHelp:
		ctx := ContextTree
		if m.ws.Filtering() {
			ctx = ContextFilter
		}
		body = RenderContextHelp(ctx, m.theme, m.width, h)
	case modePins:
		body = m.pins.View()
	case modeConfirm:
		body = lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, m.confirm.View())
	default:
		body = m.tree.View()
	}
	body = m.theme.Renderer.NewStyle().Height(h).MaxHeight(h).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus(), m.renderFooter())
}

func (m Model) renderHeader() string {
	title := m.theme.Header.Render("nt · " + m.ws.Label())
	rest := m.width - lipgloss.Width(title) - 1
	if rest <= 0 {
		return title
	}
	return title + " " + m.theme.MutedText.Render(truncate(m.ws.Describe(), rest))
}

func (m Model) renderStatus() string {
	if m.mode == modePrompt {
		return m.theme.InfoText.Render(m.prompt.Title()) + " " + m.prompt.View()
	}
	if m.statusMsg != "" {
		if m.statusIsError {
			return m.theme.ErrorText.Render(truncate(m.statusMsg, m.width))
		}
		return m.theme.InfoText.Render(truncate(m.statusMsg, m.width))
	}

	vp := m.ws.Viewport()
	pos := fmt.Sprintf("%d/%d", m.tree.Cursor()+1, vp.Len())
	if vp.Len() == 0 {
		pos = "0/0"
	}
	if m.ws.Filtering() {
		pos += fmt.Sprintf("  filter: %q", m.ws.FilterQuery())
	}
	if cut := m.tree.Cut(); cut != "" {
		pos += "  cut: " + cut
	}
	return m.theme.StatusBar.Render(truncate(pos, m.width))
}

func (m Model) renderFooter() string {
	bindings := m.keys.ShortHelp()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.theme.MutedText.Render(truncate(strings.Join(parts, " • "), m.width))
}
