package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/mschirtzinger/mdboard/internal/layout"
	"github.com/mschirtzinger/mdboard/internal/model"
	"github.com/mschirtzinger/mdboard/internal/watcher"
)

// ReconcileResult summarizes one reconciliation pass. Titles are listed for
// cards; Skipped lists paths that could not be parsed.
type ReconcileResult struct {
	Inserted []string
	Updated  []string
	Removed  []string
	Skipped  []string
	Orphaned []string
}

// Changed reports whether the pass modified the in-memory model.
func (r ReconcileResult) Changed() bool {
	return len(r.Inserted)+len(r.Updated)+len(r.Removed) > 0
}

// ApplyReport folds a watcher report into memory.
//
// Changed paths are applied before deletions so a card whose old file was
// removed and new file created in the same cycle is re-homed rather than
// dropped. Cards are matched by stable ID first and by title or slug for
// files that carry no ID. A card is removed only when its file is gone and
// no file for its slug exists anywhere under cards/.
//
// Applying the same report twice leaves the model as applying it once.
func (s *Store) ApplyReport(report watcher.Report) ReconcileResult {
	var result ReconcileResult
	_ = s.mutate(func() ([]Event, error) {
		var events []Event

		changed := make([]string, 0, len(report.Changed))
		for _, p := range report.Changed {
			changed = append(changed, filepath.Clean(p))
		}
		sort.Strings(changed)
		for _, path := range changed {
			if ev, ok := s.applyChangedLocked(path, &result); ok {
				events = append(events, ev)
			}
		}

		for _, slug := range report.DeletedSlugs() {
			events = append(events, s.applyDeletedLocked(slug, &result)...)
		}

		if result.Changed() {
			s.logger.Info("reconciled external changes",
				"inserted", len(result.Inserted),
				"updated", len(result.Updated),
				"removed", len(result.Removed))
		}
		summary := result
		events = append(events, Event{Type: EventReconciled, Result: &summary})
		return events, nil
	})
	return result
}

// Resync reconciles memory against a fresh scan of the whole board, for use
// after events may have been missed (resume, pull).
func (s *Store) Resync() (ReconcileResult, error) {
	err := s.ReloadBoard()

	snap := watcher.Scan(s.layout, nil, s.logger)
	report := watcher.Report{Deleted: make(map[string]struct{})}
	for p := range snap.Cards {
		report.Changed = append(report.Changed, p)
	}

	s.mu.Lock()
	for p := range s.cards {
		if _, ok := snap.Cards[p]; !ok {
			report.Deleted[layout.SlugOf(p)] = struct{}{}
		}
	}
	s.mu.Unlock()

	return s.ApplyReport(report), err
}

// ReloadBoard re-reads board.md. A file that fails to parse leaves the
// current definition in place and the error is returned for logging.
func (s *Store) ReloadBoard() error {
	return s.mutate(func() ([]Event, error) {
		board, err := s.readBoard()
		if err != nil {
			s.logger.Warn("keeping previous board definition", "error", err)
			return nil, err
		}
		if board.Equal(s.board) {
			return nil, nil
		}
		s.board = board
		for p, c := range s.cards {
			s.warnIfOrphan(c, p)
		}
		return []Event{boardEvent(board)}, nil
	})
}

func (s *Store) applyChangedLocked(path string, result *ReconcileResult) (Event, bool) {
	if _, _, ok := s.layout.Resolve(path); !ok {
		return Event{}, false
	}

	card, err := s.readCard(path)
	if err != nil {
		// Gone again since detection; the next cycle reports the deletion.
		if errors.Is(err, fs.ErrNotExist) {
			return Event{}, false
		}
		s.logger.Warn("skipping card file", "path", path, "error", err)
		result.Skipped = append(result.Skipped, path)
		return Event{}, false
	}

	if existing, ok := s.cards[path]; ok {
		if existing.Equal(card) {
			return Event{}, false
		}
		s.cards[path] = card
		s.noteOrphanLocked(card, path, result)
		result.Updated = append(result.Updated, card.Title)
		return cardEvent(EventCardUpdated, card), true
	}

	if oldPath, ok := s.movedFromLocked(card, path); ok {
		delete(s.cards, oldPath)
		s.cards[path] = card
		s.noteOrphanLocked(card, path, result)
		result.Updated = append(result.Updated, card.Title)
		return cardEvent(EventCardUpdated, card), true
	}

	for p, c := range s.cards {
		if c.Title == card.Title {
			s.logger.Warn("two card files share a title", "title", card.Title, "path", path, "other", p)
			break
		}
	}
	s.cards[path] = card
	s.noteOrphanLocked(card, path, result)
	result.Inserted = append(result.Inserted, card.Title)
	return cardEvent(EventCardCreated, card), true
}

// movedFromLocked finds the loaded card a newly seen file replaces: one whose
// own file is gone and that has the same ID, or, when either side has no ID,
// the same title or slug.
func (s *Store) movedFromLocked(card *model.Card, path string) (string, bool) {
	var fallback string
	slug := layout.SlugOf(path)
	for p, c := range s.cards {
		if exists(p) {
			continue
		}
		if card.ID != "" && c.ID == card.ID {
			return p, true
		}
		if (card.ID == "" || c.ID == "") && (c.Title == card.Title || layout.SlugOf(p) == slug) {
			fallback = p
		}
	}
	return fallback, fallback != ""
}

func (s *Store) applyDeletedLocked(slug string, result *ReconcileResult) []Event {
	var events []Event

	// A file for the slug elsewhere under cards/ that is not loaded yet is
	// the new home of a moved card. Load it first.
	for _, p := range s.slugPathsOnDisk(slug) {
		if _, loaded := s.cards[p]; loaded {
			continue
		}
		if ev, ok := s.applyChangedLocked(p, result); ok {
			events = append(events, ev)
		}
	}

	for p, c := range s.cards {
		if layout.SlugOf(p) != slug || exists(p) {
			continue
		}
		delete(s.cards, p)
		result.Removed = append(result.Removed, c.Title)
		events = append(events, cardEvent(EventCardRemoved, c))
	}
	return events
}

// slugPathsOnDisk lists cards/<column>/<slug>.md files that exist.
func (s *Store) slugPathsOnDisk(slug string) []string {
	columns, err := os.ReadDir(s.layout.CardsDir())
	if err != nil {
		return nil
	}
	var out []string
	for _, col := range columns {
		if !col.IsDir() {
			continue
		}
		p := filepath.Join(s.layout.ColumnDir(col.Name()), slug+layout.Ext)
		if exists(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Store) noteOrphanLocked(c *model.Card, path string, result *ReconcileResult) {
	if s.board.HasColumn(c.Column) {
		return
	}
	s.warnIfOrphan(c, path)
	result.Orphaned = append(result.Orphaned, c.Title)
}
