// Package store owns the in-memory board model and keeps it consistent with
// the board directory.
//
// Every mutation writes the affected files first and updates memory only
// after the write succeeded. External changes reported by the watcher are
// folded in through ApplyReport and ReloadBoard. Disk is the source of truth;
// memory is a read-through cache of it.
//
// All state is guarded by a single mutex, which makes the Store the one
// serialized owner of the model. Reads return copies.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mschirtzinger/mdboard/internal/layout"
	"github.com/mschirtzinger/mdboard/internal/model"
)

// Codec converts entities to and from file content. The store never looks
// inside file bodies itself.
type Codec interface {
	ParseCard(data []byte) (*model.Card, error)
	SerializeCard(c *model.Card) ([]byte, error)
	ParseBoard(data []byte) (*model.Board, error)
	SerializeBoard(b *model.Board) ([]byte, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped files and orphaned cards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for new cards.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the authoritative in-memory board plus its loaded cards.
type Store struct {
	layout layout.Layout
	codec  Codec
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	board *model.Board
	// cards maps absolute file paths to the card loaded from them.
	cards map[string]*model.Card

	// pubMu orders event delivery; subMu guards the subscriber list.
	pubMu   sync.Mutex
	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

// Init creates a new board at root with the default columns.
func Init(root, title string, codec Codec) error {
	l := layout.New(root)
	if exists(l.BoardPath()) {
		return fmt.Errorf("%s: %w", l.BoardPath(), ErrBoardExists)
	}

	board := model.DefaultBoard(title)
	data, err := codec.SerializeBoard(board)
	if err != nil {
		return fmt.Errorf("failed to serialize board: %w", err)
	}

	b := newBatch("init")
	for _, c := range board.Columns {
		if err := os.MkdirAll(l.ColumnDir(c.ID), 0o755); err != nil {
			return &AccessError{Op: "init", Path: l.ColumnDir(c.ID), Err: err}
		}
	}
	return b.write(l.BoardPath(), data)
}

// Open loads board.md and every card under cards/. Malformed cards are
// skipped with a warning; a malformed or missing board.md is an error.
func Open(root string, codec Codec, opts ...Option) (*Store, error) {
	s := &Store{
		layout: layout.New(root),
		codec:  codec,
		logger: slog.Default(),
		now:    time.Now,
		cards:  make(map[string]*model.Card),
	}
	for _, opt := range opts {
		opt(s)
	}

	board, err := s.readBoard()
	if err != nil {
		return nil, err
	}
	s.board = board

	if err := s.loadCards(); err != nil {
		return nil, err
	}

	s.logger.Debug("board opened", "root", s.layout.Root(), "cards", len(s.cards))
	return s, nil
}

// Layout returns the path mapping for this board.
func (s *Store) Layout() layout.Layout {
	return s.layout
}

func (s *Store) readBoard() (*model.Board, error) {
	data, err := os.ReadFile(s.layout.BoardPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.layout.Root(), ErrNotBoard)
	}
	if err != nil {
		return nil, &AccessError{Op: "read board", Path: s.layout.BoardPath(), Err: err}
	}
	board, err := s.codec.ParseBoard(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.layout.BoardPath(), err)
	}
	return board, nil
}

func (s *Store) loadCards() error {
	columns, err := os.ReadDir(s.layout.CardsDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &AccessError{Op: "read cards", Path: s.layout.CardsDir(), Err: err}
	}

	for _, col := range columns {
		if !col.IsDir() || strings.HasPrefix(col.Name(), ".") {
			continue
		}
		dir := s.layout.ColumnDir(col.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("skipping unreadable column directory", "path", dir, "error", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !layout.IsCardFileName(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			card, err := s.readCard(path)
			if err != nil {
				s.logger.Warn("skipping card file", "path", path, "error", err)
				continue
			}
			s.cards[path] = card
			s.warnIfOrphan(card, path)
		}
	}
	return nil
}

// readCard parses one card file and fills in what the path implies.
func (s *Store) readCard(path string) (*model.Card, error) {
	column, slug, ok := s.layout.Resolve(path)
	if !ok {
		return nil, fmt.Errorf("%w: not a card path", ErrInvalid)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	card, err := s.codec.ParseCard(data)
	if err != nil {
		return nil, err
	}

	card.Column = column
	if card.Title == "" {
		card.Title = slug
	}
	if card.CreatedAt.IsZero() {
		if info, err := os.Stat(path); err == nil {
			card.CreatedAt = info.ModTime().UTC().Truncate(time.Second)
		}
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return card, nil
}

func (s *Store) warnIfOrphan(c *model.Card, path string) {
	if !s.board.HasColumn(c.Column) {
		s.logger.Warn("card is in a column the board does not define",
			"title", c.Title, "column", c.Column, "path", path)
	}
}

// mutate runs fn under the store lock and delivers the events it returns
// once the lock is released.
func (s *Store) mutate(fn func() ([]Event, error)) error {
	s.mu.Lock()
	events, err := fn()
	if err != nil || len(events) == 0 {
		s.mu.Unlock()
		return err
	}
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()

	s.deliver(events)
	return nil
}

// Board returns a copy of the board definition.
func (s *Store) Board() *model.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Cards returns copies of all loaded cards ordered by column position, then
// card order. Cards in unknown columns sort last.
func (s *Store) Cards() []*model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(*model.Card) bool { return true })
}

// CardsInColumn returns the cards of one column in display order.
func (s *Store) CardsInColumn(column string) []*model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(c *model.Card) bool { return c.Column == column })
}

// Orphans returns cards whose directory does not match any board column.
func (s *Store) Orphans() []*model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(c *model.Card) bool { return !s.board.HasColumn(c.Column) })
}

// Card finds a card by title, falling back to ID and then slug.
func (s *Store) Card(ref string) (*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, c, err := s.findLocked(ref)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Path returns the file a card is loaded from.
func (s *Store) Path(ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, _, err := s.findLocked(ref)
	return path, err
}

func (s *Store) findLocked(ref string) (string, *model.Card, error) {
	path, c := matchCard(s.cards, ref)
	if c == nil {
		return "", nil, notFound("card", ref)
	}
	return path, c, nil
}

func (s *Store) sortedLocked(keep func(*model.Card) bool) []*model.Card {
	out := make([]*model.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	s.sortCards(out)
	return out
}

func (s *Store) sortCards(cards []*model.Card) {
	pos := func(c *model.Card) int {
		if i := s.board.ColumnIndex(c.Column); i >= 0 {
			return i
		}
		return len(s.board.Columns)
	}
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if pa, pb := pos(a), pos(b); pa != pb {
			return pa < pb
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Title < b.Title
	})
}

// Archived lists archived cards. The archive is not watched, so this reads
// the directory on every call.
func (s *Store) Archived() ([]*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived, err := s.archivedLocked()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Card, 0, len(archived))
	for _, c := range archived {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// archivedLocked maps archive paths to cards. Column is left empty.
func (s *Store) archivedLocked() (map[string]*model.Card, error) {
	entries, err := os.ReadDir(s.layout.ArchiveDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &AccessError{Op: "read archive", Path: s.layout.ArchiveDir(), Err: err}
	}

	out := make(map[string]*model.Card)
	for _, e := range entries {
		if e.IsDir() || !layout.IsCardFileName(e.Name()) {
			continue
		}
		path := filepath.Join(s.layout.ArchiveDir(), e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping archived card", "path", path, "error", err)
			continue
		}
		card, err := s.codec.ParseCard(data)
		if err != nil {
			s.logger.Warn("skipping archived card", "path", path, "error", err)
			continue
		}
		if card.Title == "" {
			card.Title = layout.SlugOf(path)
		}
		out[path] = card
	}
	return out, nil
}
