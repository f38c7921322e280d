package watcher

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mschirtzinger/mdboard/internal/layout"
)

// Fingerprint identifies one observed version of a file.
type Fingerprint struct {
	ModTime time.Time
	Size    int64
}

// Snapshot is the set of card files and the board file seen by one scan.
type Snapshot struct {
	// Cards maps absolute card paths to their fingerprint.
	Cards map[string]Fingerprint
	// Board is board.md's fingerprint; zero when the file was absent.
	Board Fingerprint
	// BoardPresent reports whether board.md existed at scan time.
	BoardPresent bool
}

// Scan lists cards/<column>/*.md and stats board.md. Areas that cannot be
// read keep the entries they had in prev (which may be nil).
func Scan(l layout.Layout, prev *Snapshot, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	next := &Snapshot{Cards: make(map[string]Fingerprint)}

	// A missing root is an unmounted or ejected volume, not an empty board.
	if _, err := os.Stat(l.Root()); err != nil {
		logger.Warn("board root unavailable, keeping previous snapshot", "root", l.Root(), "error", err)
		return carryAll(prev)
	}

	if info, err := os.Stat(l.BoardPath()); err == nil {
		next.Board = Fingerprint{ModTime: info.ModTime(), Size: info.Size()}
		next.BoardPresent = true
	} else if !errors.Is(err, fs.ErrNotExist) && prev != nil {
		next.Board = prev.Board
		next.BoardPresent = prev.BoardPresent
	}

	columns, err := os.ReadDir(l.CardsDir())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot read cards directory", "path", l.CardsDir(), "error", err)
			carryUnder(prev, next, l.CardsDir())
		}
		return next
	}

	for _, col := range columns {
		if !col.IsDir() || isHidden(col.Name()) {
			continue
		}
		dir := filepath.Join(l.CardsDir(), col.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("cannot read column directory", "path", dir, "error", err)
				carryUnder(prev, next, dir)
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !layout.IsCardFileName(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				// Removed between ReadDir and Info; report it on the next cycle.
				if !errors.Is(err, fs.ErrNotExist) {
					carryPath(prev, next, path)
				}
				continue
			}
			next.Cards[path] = Fingerprint{ModTime: info.ModTime(), Size: info.Size()}
		}
	}
	return next
}

// Diff compares two snapshots. A nil prev reports nothing: the first scan
// establishes the baseline.
func Diff(prev, next *Snapshot) (Report, bool) {
	report := Report{Deleted: make(map[string]struct{})}
	if prev == nil || next == nil {
		return report, false
	}

	for path, fp := range next.Cards {
		old, ok := prev.Cards[path]
		if !ok || !old.ModTime.Equal(fp.ModTime) || old.Size != fp.Size {
			report.Changed = append(report.Changed, path)
		}
	}
	sort.Strings(report.Changed)

	for path := range prev.Cards {
		if _, ok := next.Cards[path]; !ok {
			report.Deleted[layout.SlugOf(path)] = struct{}{}
		}
	}

	boardChanged := next.BoardPresent &&
		(!prev.BoardPresent || next.Board.ModTime.After(prev.Board.ModTime))
	return report, boardChanged
}

func carryAll(prev *Snapshot) *Snapshot {
	next := &Snapshot{Cards: make(map[string]Fingerprint)}
	if prev == nil {
		return next
	}
	for p, fp := range prev.Cards {
		next.Cards[p] = fp
	}
	next.Board = prev.Board
	next.BoardPresent = prev.BoardPresent
	return next
}

func carryUnder(prev, next *Snapshot, dir string) {
	if prev == nil {
		return
	}
	prefix := dir + string(filepath.Separator)
	for p, fp := range prev.Cards {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix {
			next.Cards[p] = fp
		}
	}
}

func carryPath(prev, next *Snapshot, path string) {
	if prev == nil {
		return
	}
	if fp, ok := prev.Cards[path]; ok {
		next.Cards[path] = fp
	}
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
