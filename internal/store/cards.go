package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/mdboard/internal/layout"
	"github.com/mschirtzinger/mdboard/internal/model"
)

// CreateCard writes a new card at the end of column. An empty body takes the
// board's card template.
func (s *Store) CreateCard(column, title, body string, labels []string) (*model.Card, error) {
	var created *model.Card
	err := s.mutate(func() ([]Event, error) {
		title, err := normalizeTitle(title)
		if err != nil {
			return nil, err
		}
		if !s.board.HasColumn(column) {
			return nil, notFound("column", column)
		}
		if err := s.checkLabelsLocked(labels); err != nil {
			return nil, err
		}
		if err := s.checkTitleLocked(title, ""); err != nil {
			return nil, err
		}
		path := s.layout.CardPath(column, title)
		if exists(path) {
			return nil, fmt.Errorf("%s: %w", path, ErrSlugConflict)
		}

		if body == "" {
			body = s.board.CardTemplate
		}
		card := &model.Card{
			ID:        model.NewCardID(),
			Title:     title,
			Body:      body,
			Column:    column,
			Labels:    dedupe(labels),
			CreatedAt: s.now().UTC().Truncate(time.Second),
			Order:     s.maxOrderLocked(column) + 1,
		}

		if err := s.writeCard(newBatch("create card"), path, card); err != nil {
			return nil, err
		}
		s.cards[path] = card
		created = card.Clone()
		return []Event{cardEvent(EventCardCreated, card)}, nil
	})
	return created, err
}

// RenameCard changes a card's title, which moves it to a new file.
func (s *Store) RenameCard(ref, newTitle string) (*model.Card, error) {
	var renamed *model.Card
	err := s.mutate(func() ([]Event, error) {
		path, card, err := s.findLocked(ref)
		if err != nil {
			return nil, err
		}
		newTitle, err := normalizeTitle(newTitle)
		if err != nil {
			return nil, err
		}
		if newTitle == card.Title {
			renamed = card.Clone()
			return nil, nil
		}
		if err := s.checkTitleLocked(newTitle, path); err != nil {
			return nil, err
		}

		newPath := filepath.Join(filepath.Dir(path), layout.Slugify(newTitle)+layout.Ext)
		if newPath != path && exists(newPath) {
			return nil, fmt.Errorf("%s: %w", newPath, ErrSlugConflict)
		}

		next := card.Clone()
		next.Title = newTitle

		b := newBatch("rename card")
		if err := s.writeCard(b, newPath, next); err != nil {
			return nil, err
		}
		if newPath != path {
			if err := b.remove(path); err != nil {
				b.rollback(s.logger)
				return nil, err
			}
		}

		delete(s.cards, path)
		s.cards[newPath] = next
		renamed = next.Clone()
		return []Event{cardEvent(EventCardUpdated, next)}, nil
	})
	return renamed, err
}

// UpdateCardBody replaces a card's markdown body.
func (s *Store) UpdateCardBody(ref, body string) error {
	return s.updateCard("edit card", ref, func(c *model.Card) error {
		c.Body = body
		return nil
	})
}

// SetCardLabels replaces a card's label references. Every label must exist
// on the board.
func (s *Store) SetCardLabels(ref string, labels []string) error {
	return s.updateCard("label card", ref, func(c *model.Card) error {
		if err := s.checkLabelsLocked(labels); err != nil {
			return err
		}
		c.Labels = dedupe(labels)
		return nil
	})
}

func (s *Store) updateCard(op, ref string, change func(*model.Card) error) error {
	return s.mutate(func() ([]Event, error) {
		path, card, err := s.findLocked(ref)
		if err != nil {
			return nil, err
		}
		next := card.Clone()
		if err := change(next); err != nil {
			return nil, err
		}
		if next.Equal(card) {
			return nil, nil
		}
		if err := s.writeCard(newBatch(op), path, next); err != nil {
			return nil, err
		}
		s.cards[path] = next
		return []Event{cardEvent(EventCardUpdated, next)}, nil
	})
}

// MoveCard places a card at index within column (a negative or too large
// index appends). Sibling cards are renumbered as needed; if any write fails
// every file is restored.
func (s *Store) MoveCard(ref, column string, index int) error {
	return s.mutate(func() ([]Event, error) {
		path, card, err := s.findLocked(ref)
		if err != nil {
			return nil, err
		}
		if !s.board.HasColumn(column) {
			return nil, notFound("column", column)
		}

		newPath := filepath.Join(s.layout.ColumnDir(column), filepath.Base(path))
		if newPath != path && exists(newPath) {
			return nil, fmt.Errorf("%s: %w", newPath, ErrSlugConflict)
		}

		type entry struct {
			path string
			card *model.Card
		}
		var siblings []entry
		for p, c := range s.cards {
			if c.Column == column && p != path {
				siblings = append(siblings, entry{p, c})
			}
		}
		ordered := make([]*model.Card, len(siblings))
		for i := range siblings {
			ordered[i] = siblings[i].card
		}
		s.sortCards(ordered)
		pathOf := make(map[*model.Card]string, len(siblings))
		for _, e := range siblings {
			pathOf[e.card] = e.path
		}

		if index < 0 || index > len(ordered) {
			index = len(ordered)
		}
		ordered = append(ordered[:index], append([]*model.Card{card}, ordered[index:]...)...)

		b := newBatch("move card")
		updates := make(map[string]*model.Card)
		for i, c := range ordered {
			want := i + 1
			if c == card {
				next := card.Clone()
				next.Column = column
				next.Order = want
				if next.Equal(card) && newPath == path {
					continue
				}
				if err := s.writeCard(b, newPath, next); err != nil {
					b.rollback(s.logger)
					return nil, err
				}
				updates[newPath] = next
				continue
			}
			if c.Order == want {
				continue
			}
			next := c.Clone()
			next.Order = want
			if err := s.writeCard(b, pathOf[c], next); err != nil {
				b.rollback(s.logger)
				return nil, err
			}
			updates[pathOf[c]] = next
		}
		if newPath != path {
			if err := b.remove(path); err != nil {
				b.rollback(s.logger)
				return nil, err
			}
			delete(s.cards, path)
		}

		events := make([]Event, 0, len(updates))
		for p, c := range updates {
			s.cards[p] = c
			events = append(events, cardEvent(EventCardUpdated, c))
		}
		return events, nil
	})
}

// ArchiveCard moves a card out of cards/ into the unwatched archive directory.
func (s *Store) ArchiveCard(ref string) error {
	return s.mutate(func() ([]Event, error) {
		path, card, err := s.findLocked(ref)
		if err != nil {
			return nil, err
		}
		dest := filepath.Join(s.layout.ArchiveDir(), filepath.Base(path))
		if exists(dest) {
			return nil, fmt.Errorf("%s: %w", dest, ErrSlugConflict)
		}

		b := newBatch("archive card")
		if err := s.writeCard(b, dest, card.Clone()); err != nil {
			return nil, err
		}
		if err := b.remove(path); err != nil {
			b.rollback(s.logger)
			return nil, err
		}

		delete(s.cards, path)
		return []Event{cardEvent(EventCardRemoved, card)}, nil
	})
}

// UnarchiveCard restores an archived card to the end of column, or of the
// first column when column is empty.
func (s *Store) UnarchiveCard(ref, column string) (*model.Card, error) {
	var restored *model.Card
	err := s.mutate(func() ([]Event, error) {
		archived, err := s.archivedLocked()
		if err != nil {
			return nil, err
		}
		src, card := matchCard(archived, ref)
		if card == nil {
			return nil, notFound("archived card", ref)
		}

		if column == "" {
			column = s.board.Columns[0].ID
		}
		if !s.board.HasColumn(column) {
			return nil, notFound("column", column)
		}
		if err := s.checkTitleLocked(card.Title, ""); err != nil {
			return nil, err
		}
		dest := filepath.Join(s.layout.ColumnDir(column), filepath.Base(src))
		if exists(dest) {
			return nil, fmt.Errorf("%s: %w", dest, ErrSlugConflict)
		}

		next := card.Clone()
		next.Column = column
		next.Order = s.maxOrderLocked(column) + 1
		if next.CreatedAt.IsZero() {
			next.CreatedAt = s.now().UTC().Truncate(time.Second)
		}
		if err := next.Validate(); err != nil {
			return nil, invalid("%v", err)
		}

		b := newBatch("unarchive card")
		if err := s.writeCard(b, dest, next); err != nil {
			return nil, err
		}
		if err := b.remove(src); err != nil {
			b.rollback(s.logger)
			return nil, err
		}

		s.cards[dest] = next
		restored = next.Clone()
		return []Event{cardEvent(EventCardCreated, next)}, nil
	})
	return restored, err
}

// DeleteCard removes a card file permanently.
func (s *Store) DeleteCard(ref string) error {
	return s.mutate(func() ([]Event, error) {
		path, card, err := s.findLocked(ref)
		if err != nil {
			return nil, err
		}
		if err := newBatch("delete card").remove(path); err != nil {
			return nil, err
		}
		delete(s.cards, path)
		return []Event{cardEvent(EventCardRemoved, card)}, nil
	})
}

// writeCard serializes c to path as part of b. A card loaded from a file
// without an ID is given one here, so c must be the copy that memory will
// hold once the mutation succeeds.
func (s *Store) writeCard(b *batch, path string, c *model.Card) error {
	if c.ID == "" {
		c.ID = model.NewCardID()
	}
	data, err := s.codec.SerializeCard(c)
	if err != nil {
		return fmt.Errorf("failed to serialize card %q: %w", c.Title, err)
	}
	return b.write(path, data)
}

// checkTitleLocked rejects a title used by another card, or one whose slug
// collides with another card's file name. except is the path of the card
// being renamed.
func (s *Store) checkTitleLocked(title, except string) error {
	slug := layout.Slugify(title)
	for path, c := range s.cards {
		if path == except {
			continue
		}
		if c.Title == title {
			return fmt.Errorf("%q: %w", title, ErrTitleConflict)
		}
		if layout.SlugOf(path) == slug {
			return fmt.Errorf("%q collides with %q: %w", title, c.Title, ErrSlugConflict)
		}
	}
	return nil
}

func (s *Store) checkLabelsLocked(labels []string) error {
	for _, id := range labels {
		if _, ok := s.board.Label(id); !ok {
			return notFound("label", id)
		}
	}
	return nil
}

func (s *Store) maxOrderLocked(column string) int {
	highest := 0
	for _, c := range s.cards {
		if c.Column == column && c.Order > highest {
			highest = c.Order
		}
	}
	return highest
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title is required")
	}
	if strings.ContainsAny(title, "\r\n") {
		return "", invalid("title must be a single line")
	}
	if len(title) > model.MaxTitleLength {
		return "", invalid("title must be %d characters or less", model.MaxTitleLength)
	}
	return title, nil
}

// matchCard looks a card up by title, ID or slug in a path-keyed set.
func matchCard(cards map[string]*model.Card, ref string) (string, *model.Card) {
	for p, c := range cards {
		if c.Title == ref {
			return p, c
		}
	}
	for p, c := range cards {
		if ref != "" && (c.ID == ref || layout.SlugOf(p) == ref) {
			return p, c
		}
	}
	return "", nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
