// Package model defines the board and card entities persisted as markdown files.
//
// The types here are pure data. They know nothing about paths or file formats;
// see internal/layout for the path mapping and internal/format for the codec.
package model

import (
	"fmt"
	"regexp"
)

// DefaultCardTemplate is the body given to new cards when the board has no template.
const DefaultCardTemplate = ""

// columnIDPattern matches IDs that are safe to use as directory names.
var columnIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Column is a named bucket of cards. The ID doubles as the directory name
// under cards/, so it must stay stable once created.
type Column struct {
	ID   string
	Name string
}

// Label is a colored tag that cards reference by ID.
type Label struct {
	ID    string
	Name  string
	Color string
}

// Board is the content of board.md.
type Board struct {
	Title        string
	Columns      []Column
	Labels       []Label
	CardTemplate string
}

// DefaultBoard returns the board written by `mdboard init`.
func DefaultBoard(title string) *Board {
	if title == "" {
		title = "Board"
	}
	return &Board{
		Title: title,
		Columns: []Column{
			{ID: "todo", Name: "To Do"},
			{ID: "doing", Name: "Doing"},
			{ID: "done", Name: "Done"},
		},
		CardTemplate: DefaultCardTemplate,
	}
}

// ValidColumnID reports whether id can be used as a column directory name.
func ValidColumnID(id string) bool {
	return columnIDPattern.MatchString(id)
}

// Validate checks the board invariants: at least one column, unique and
// path-safe column IDs, unique label IDs.
func (b *Board) Validate() error {
	if len(b.Columns) == 0 {
		return fmt.Errorf("board must have at least one column")
	}

	seen := make(map[string]bool, len(b.Columns))
	for _, c := range b.Columns {
		if !ValidColumnID(c.ID) {
			return fmt.Errorf("invalid column id %q", c.ID)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate column id %q", c.ID)
		}
		seen[c.ID] = true
	}

	labels := make(map[string]bool, len(b.Labels))
	for _, l := range b.Labels {
		if l.ID == "" {
			return fmt.Errorf("label id is required")
		}
		if labels[l.ID] {
			return fmt.Errorf("duplicate label id %q", l.ID)
		}
		labels[l.ID] = true
	}
	return nil
}

// Column returns the column with the given ID.
func (b *Board) Column(id string) (Column, bool) {
	for _, c := range b.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether a column with the given ID exists.
func (b *Board) HasColumn(id string) bool {
	_, ok := b.Column(id)
	return ok
}

// ColumnIndex returns the position of the column, or -1.
func (b *Board) ColumnIndex(id string) int {
	for i, c := range b.Columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Label returns the label with the given ID.
func (b *Board) Label(id string) (Label, bool) {
	for _, l := range b.Labels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// LabelIndex returns the position of the label, or -1.
func (b *Board) LabelIndex(id string) int {
	for i, l := range b.Labels {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Columns = append([]Column(nil), b.Columns...)
	out.Labels = append([]Label(nil), b.Labels...)
	return &out
}

// Equal reports whether two boards carry the same content.
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.Title != o.Title || b.CardTemplate != o.CardTemplate {
		return false
	}
	if len(b.Columns) != len(o.Columns) || len(b.Labels) != len(o.Labels) {
		return false
	}
	for i := range b.Columns {
		if b.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range b.Labels {
		if b.Labels[i] != o.Labels[i] {
			return false
		}
	}
	return true
}
