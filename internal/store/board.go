package store

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/layout"
	"github.com/mschirtzinger/mdboard/internal/model"
)

// labelColorPattern accepts #rgb, #rrggbb or an ANSI 256 color number.
var labelColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6}|[0-9]{1,3})$`)

// AddColumn appends a column. Its ID is derived from name and made unique.
// An existing directory with that ID is adopted, so orphaned cards in it
// become regular cards again.
func (s *Store) AddColumn(name string) (model.Column, error) {
	var added model.Column
	err := s.mutate(func() ([]Event, error) {
		name := strings.TrimSpace(name)
		if name == "" {
			return nil, invalid("column name is required")
		}

		id := uniqueID(layout.Slugify(name), s.board.HasColumn)
		next := s.board.Clone()
		next.Columns = append(next.Columns, model.Column{ID: id, Name: name})
		if err := next.Validate(); err != nil {
			return nil, invalid("%v", err)
		}

		b := newBatch("add column")
		if err := b.mkdir(s.layout.ColumnDir(id)); err != nil {
			return nil, err
		}
		if err := s.writeBoard(b, next); err != nil {
			b.rollback(s.logger)
			return nil, err
		}

		s.board = next
		added = model.Column{ID: id, Name: name}
		return []Event{boardEvent(next)}, nil
	})
	return added, err
}

// RenameColumn changes a column's display name. The ID and directory stay.
func (s *Store) RenameColumn(id, name string) error {
	return s.updateBoard("rename column", func(b *model.Board) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("column name is required")
		}
		i := b.ColumnIndex(id)
		if i < 0 {
			return notFound("column", id)
		}
		b.Columns[i].Name = name
		return nil
	})
}

// RemoveColumn deletes an empty column. The last column cannot be removed.
func (s *Store) RemoveColumn(id string) error {
	return s.mutate(func() ([]Event, error) {
		i := s.board.ColumnIndex(id)
		if i < 0 {
			return nil, notFound("column", id)
		}
		if len(s.board.Columns) == 1 {
			return nil, ErrLastColumn
		}
		for _, c := range s.cards {
			if c.Column == id {
				return nil, fmt.Errorf("column %q: %w", id, ErrColumnNotEmpty)
			}
		}

		next := s.board.Clone()
		next.Columns = append(next.Columns[:i], next.Columns[i+1:]...)
		if err := s.writeBoard(newBatch("remove column"), next); err != nil {
			return nil, err
		}
		s.board = next

		// Leave the directory if it still holds non-card files.
		if err := os.Remove(s.layout.ColumnDir(id)); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("column directory left in place", "path", s.layout.ColumnDir(id), "error", err)
		}
		return []Event{boardEvent(next)}, nil
	})
}

// ReorderColumns sets the column order. ids must be a permutation of the
// current column IDs.
func (s *Store) ReorderColumns(ids []string) error {
	return s.updateBoard("reorder columns", func(b *model.Board) error {
		if len(ids) != len(b.Columns) {
			return invalid("expected %d column ids, got %d", len(b.Columns), len(ids))
		}
		reordered := make([]model.Column, 0, len(ids))
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			c, ok := b.Column(id)
			if !ok {
				return notFound("column", id)
			}
			if seen[id] {
				return invalid("column %q listed twice", id)
			}
			seen[id] = true
			reordered = append(reordered, c)
		}
		b.Columns = reordered
		return nil
	})
}

// AddLabel appends a label definition.
func (s *Store) AddLabel(name, color string) (model.Label, error) {
	var added model.Label
	err := s.updateBoard("add label", func(b *model.Board) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("label name is required")
		}
		if err := validColor(color); err != nil {
			return err
		}
		id := uniqueID(layout.Slugify(name), func(id string) bool {
			_, ok := b.Label(id)
			return ok
		})
		added = model.Label{ID: id, Name: name, Color: color}
		b.Labels = append(b.Labels, added)
		return nil
	})
	return added, err
}

// RenameLabel changes a label's display name.
func (s *Store) RenameLabel(id, name string) error {
	return s.updateBoard("rename label", func(b *model.Board) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalid("label name is required")
		}
		i := b.LabelIndex(id)
		if i < 0 {
			return notFound("label", id)
		}
		b.Labels[i].Name = name
		return nil
	})
}

// RecolorLabel changes a label's color.
func (s *Store) RecolorLabel(id, color string) error {
	return s.updateBoard("recolor label", func(b *model.Board) error {
		if err := validColor(color); err != nil {
			return err
		}
		i := b.LabelIndex(id)
		if i < 0 {
			return notFound("label", id)
		}
		b.Labels[i].Color = color
		return nil
	})
}

// RemoveLabel deletes a label definition. Cards keep their references to it;
// they are just no longer rendered.
func (s *Store) RemoveLabel(id string) error {
	return s.updateBoard("remove label", func(b *model.Board) error {
		i := b.LabelIndex(id)
		if i < 0 {
			return notFound("label", id)
		}
		b.Labels = append(b.Labels[:i], b.Labels[i+1:]...)
		return nil
	})
}

// SetTitle changes the board title.
func (s *Store) SetTitle(title string) error {
	return s.updateBoard("set title", func(b *model.Board) error {
		title = strings.TrimSpace(title)
		if title == "" {
			return invalid("board title is required")
		}
		b.Title = title
		return nil
	})
}

// SetCardTemplate changes the body given to new cards.
func (s *Store) SetCardTemplate(template string) error {
	return s.updateBoard("set template", func(b *model.Board) error {
		b.CardTemplate = template
		return nil
	})
}

// updateBoard applies change to a copy of the board, writes it and swaps it
// in. A change that leaves the board equal is a no-op.
func (s *Store) updateBoard(op string, change func(*model.Board) error) error {
	return s.mutate(func() ([]Event, error) {
		next := s.board.Clone()
		if err := change(next); err != nil {
			return nil, err
		}
		if next.Equal(s.board) {
			return nil, nil
		}
		if err := next.Validate(); err != nil {
			return nil, invalid("%v", err)
		}
		if err := s.writeBoard(newBatch(op), next); err != nil {
			return nil, err
		}
		s.board = next
		return []Event{boardEvent(next)}, nil
	})
}

func (s *Store) writeBoard(b *batch, board *model.Board) error {
	data, err := s.codec.SerializeBoard(board)
	if err != nil {
		return fmt.Errorf("failed to serialize board: %w", err)
	}
	return b.write(s.layout.BoardPath(), data)
}

func validColor(color string) error {
	if color == "" || labelColorPattern.MatchString(color) {
		return nil
	}
	return invalid("color %q must be #rgb, #rrggbb or an ANSI color number", color)
}

// uniqueID returns base, or base-2, base-3 ... until taken reports false.
func uniqueID(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for n := 2; ; n++ {
		id := base + "-" + strconv.Itoa(n)
		if !taken(id) {
			return id
		}
	}
}
