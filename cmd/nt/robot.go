package main

import (
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/notetree/pkg/workspace"
)

// robotRow is one visible row in --robot-tree output.
type robotRow struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Level       int    `json:"level"`
	IsDir       bool   `json:"is_dir"`
	HasChildren bool   `json:"has_children,omitempty"`
	Expanded    bool   `json:"expanded,omitempty"`
}

// robotTree is the --robot-tree document.
type robotTree struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Vault       string     `json:"vault"`
	Expanded    []string   `json:"expanded"`
	Rows        []robotRow `json:"rows"`
}

// writeRobotTree prints the visible tree of an opened workspace, with the
// persisted expansion already restored.
func writeRobotTree(w io.Writer, ws *workspace.Workspace) error {
	ws.Refresh()
	doc := robotTree{
		GeneratedAt: time.Now().UTC(),
		Vault:       ws.Describe(),
		Expanded:    ws.Store().ExpandedPaths(),
		Rows:        make([]robotRow, 0, len(ws.Rows())),
	}
	for _, r := range ws.Rows() {
		doc.Rows = append(doc.Rows, robotRow{
			Path:        r.Node.Path,
			Name:        r.Node.Name,
			Level:       r.Level,
			IsDir:       r.Node.IsDir,
			HasChildren: r.Node.HasChildren,
			Expanded:    r.Expanded,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}
