package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/notetree/pkg/tree"
)

// deleteConfirm asks before a delete. The form keeps its answer behind a
// pointer because the model is copied on every update.
type deleteConfirm struct {
	path   string
	isDir  bool
	answer *bool
	form   *huh.Form
}

func newDeleteConfirm(row tree.Row) *deleteConfirm {
	answer := new(bool)
	desc := "The note will be removed."
	if row.Node.IsDir {
		desc = "The folder and everything in it will be removed."
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete %s?", row.Node.Path)).
				Description(desc).
				Affirmative("Delete").
				Negative("Cancel").
				Value(answer),
		),
	).WithShowHelp(false).WithTheme(huh.ThemeDracula())

	return &deleteConfirm{
		path:   row.Node.Path,
		isDir:  row.Node.IsDir,
		answer: answer,
		form:   form,
	}
}

func (c *deleteConfirm) Init() tea.Cmd {
	return c.form.Init()
}

// Update feeds msg to the form. done is set once the user answered or
// cancelled; confirmed tells which.
func (c *deleteConfirm) Update(msg tea.Msg) (done, confirmed bool, cmd tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return true, false, nil
	}
	next, cmd := c.form.Update(msg)
	if f, ok := next.(*huh.Form); ok {
		c.form = f
	}
	switch c.form.State {
	case huh.StateCompleted:
		return true, *c.answer, cmd
	case huh.StateAborted:
		return true, false, cmd
	}
	return false, false, cmd
}

func (c *deleteConfirm) View() string {
	return c.form.View()
}
