// Package layout maps board entities to paths under a board root.
//
//	<root>/board.md
//	<root>/cards/<columnID>/<slug>.md
//	<root>/archive/<slug>.md
//	<root>/.mdboard/
//
// The mapping is deterministic and has no behaviour beyond path arithmetic.
package layout

import (
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// BoardFile is the name of the board definition file.
	BoardFile = "board.md"
	// CardsDir holds one subdirectory per column.
	CardsDir = "cards"
	// ArchiveDir holds archived cards. It is not watched.
	ArchiveDir = "archive"
	// StateDir holds local, non-synced state (config, index cache).
	StateDir = ".mdboard"
	// Ext is the extension of every card and board file.
	Ext = ".md"
)

// Layout resolves paths for one board root.
type Layout struct {
	root string
}

// New returns a Layout rooted at root. The root is made absolute and clean.
func New(root string) Layout {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return Layout{root: filepath.Clean(root)}
}

// Root returns the absolute board root.
func (l Layout) Root() string { return l.root }

// BoardPath returns <root>/board.md.
func (l Layout) BoardPath() string {
	return filepath.Join(l.root, BoardFile)
}

// CardsDir returns <root>/cards.
func (l Layout) CardsDir() string {
	return filepath.Join(l.root, CardsDir)
}

// ColumnDir returns <root>/cards/<column>.
func (l Layout) ColumnDir(column string) string {
	return filepath.Join(l.root, CardsDir, column)
}

// CardPath returns the file a card with the given title lives in.
func (l Layout) CardPath(column, title string) string {
	return filepath.Join(l.ColumnDir(column), Slugify(title)+Ext)
}

// ArchiveDir returns <root>/archive.
func (l Layout) ArchiveDir() string {
	return filepath.Join(l.root, ArchiveDir)
}

// ArchivePath returns the archived location for a card title.
func (l Layout) ArchivePath(title string) string {
	return filepath.Join(l.ArchiveDir(), Slugify(title)+Ext)
}

// StateDir returns <root>/.mdboard.
func (l Layout) StateDir() string {
	return filepath.Join(l.root, StateDir)
}

// ConfigPath returns <root>/.mdboard/config.yaml.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.StateDir(), "config.yaml")
}

// IndexPath returns <root>/.mdboard/index.db.
func (l Layout) IndexPath() string {
	return filepath.Join(l.StateDir(), "index.db")
}

// IsBoardFile reports whether path is this board's board.md.
func (l Layout) IsBoardFile(path string) bool {
	return filepath.Clean(path) == l.BoardPath()
}

// Resolve derives the column and slug from a path of the form
// <root>/cards/<column>/<slug>.md. ok is false for anything else,
// including files nested deeper than one column level.
func (l Layout) Resolve(path string) (column, slug string, ok bool) {
	rel, err := filepath.Rel(l.CardsDir(), filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", "", false
	}
	name := parts[1]
	if !IsCardFileName(name) {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(name, Ext), true
}

// IsCardFileName reports whether name looks like a card file.
// Hidden files and editor temporaries are ignored.
func IsCardFileName(name string) bool {
	if !strings.HasSuffix(name, Ext) || len(name) == len(Ext) {
		return false
	}
	return !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "~")
}

// SlugOf returns the slug part of a card file path.
func SlugOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

// Slugify derives a filename-safe slug from a card title: lowercase ASCII
// letters and digits are kept, every other run collapses to one hyphen.
func Slugify(title string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
