package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Context identifies what the user is interacting with, for help lookup.
type Context string

const (
	ContextTree    Context = "tree"
	ContextFilter  Context = "filter"
	ContextPrompt  Context = "prompt"
	ContextPins    Context = "pins"
	ContextConfirm Context = "confirm"
)

// ContextHelpContent contains compact help content for each context.
// Content should fit on one screen (~20 lines) without scrolling.
var ContextHelpContent = map[Context]string{
	ContextTree:    contextHelpTree,
	ContextFilter:  contextHelpFilter,
	ContextPrompt:  contextHelpPrompt,
	ContextPins:    contextHelpPins,
	ContextConfirm: contextHelpConfirm,
}

// GetContextHelp returns the help content for a given context.
// Falls back to the tree help if the context has no specific content.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpTree
}

// RenderContextHelp renders the help modal for ctx.
func RenderContextHelp(ctx Context, theme Theme, width, height int) string {
	content := GetContextHelp(ctx)

	r := theme.Renderer

	modalWidth := 52
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(theme.Primary)

	contentStyle := r.NewStyle().
		Foreground(theme.Subtext)

	footerStyle := r.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("? or Esc to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalStyle.Render(b.String()))
}

const contextHelpTree = `## Tree

**Navigation**
  j/k       Move up/down
  g/G       Jump to top/bottom
  PgUp/PgDn Page up/down
  h/l       Collapse or parent / expand or child
  Enter     Toggle folder

**Edit**
  n / N     New note / new folder
  R         Rename
  d         Delete
  x then p  Cut, then move into folder

**Other**
  s / P     Pin toggle / pinned items
  y         Copy path
  /         Filter
  r         Reload from storage
  q         Quit`

const contextHelpFilter = `## Filter

Type to narrow the tree to loaded
entries whose path contains the text.
Matching folders keep their subtree.

  Enter     Keep filter, back to tree
  Esc       Clear filter`

const contextHelpPrompt = `## Name Prompt

  Enter     Apply
  Esc       Cancel

Names cannot contain "/". Notes get
the vault's note extension.`

const contextHelpPins = `## Pinned Items

  j/k       Move selection
  Enter     Reveal in tree
  u         Unpin
  Esc       Close`

const contextHelpConfirm = `## Delete

  ←/→       Choose
  Enter     Confirm choice
  Esc       Cancel

Deleting a folder removes everything
inside it.`
