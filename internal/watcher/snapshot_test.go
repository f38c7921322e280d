package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/mdboard/internal/layout"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func TestScan_OnlyCardFiles(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)

	writeFile(t, l.BoardPath(), "---\ntitle: b\n---\n")
	writeFile(t, filepath.Join(l.ColumnDir("todo"), "a.md"), "a")
	writeFile(t, filepath.Join(l.ColumnDir("todo"), ".hidden.md"), "h")
	writeFile(t, filepath.Join(l.ColumnDir("todo"), "notes.txt"), "n")
	writeFile(t, filepath.Join(l.ColumnDir("todo"), "nested", "deep.md"), "d")
	writeFile(t, filepath.Join(l.CardsDir(), "loose.md"), "l")
	writeFile(t, filepath.Join(l.ArchivePath("old")), "o")

	snap := Scan(l, nil, nil)

	if !snap.BoardPresent {
		t.Error("BoardPresent = false, want true")
	}
	if len(snap.Cards) != 1 {
		t.Fatalf("len(Cards) = %d, want 1: %v", len(snap.Cards), snap.Cards)
	}
	if _, ok := snap.Cards[filepath.Join(l.ColumnDir("todo"), "a.md")]; !ok {
		t.Errorf("Cards missing a.md: %v", snap.Cards)
	}
}

func TestDiff(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	prev := &Snapshot{
		Cards: map[string]Fingerprint{
			"/b/cards/todo/same.md":    {ModTime: t0, Size: 1},
			"/b/cards/todo/touched.md": {ModTime: t0, Size: 1},
			"/b/cards/todo/grown.md":   {ModTime: t0, Size: 1},
			"/b/cards/todo/gone.md":    {ModTime: t0, Size: 1},
		},
		Board:        Fingerprint{ModTime: t0},
		BoardPresent: true,
	}
	next := &Snapshot{
		Cards: map[string]Fingerprint{
			"/b/cards/todo/same.md":    {ModTime: t0, Size: 1},
			"/b/cards/todo/touched.md": {ModTime: t1, Size: 1},
			"/b/cards/todo/grown.md":   {ModTime: t0, Size: 2},
			"/b/cards/done/new.md":     {ModTime: t0, Size: 1},
		},
		Board:        Fingerprint{ModTime: t1},
		BoardPresent: true,
	}

	report, boardChanged := Diff(prev, next)

	wantChanged := []string{"/b/cards/done/new.md", "/b/cards/todo/grown.md", "/b/cards/todo/touched.md"}
	if len(report.Changed) != len(wantChanged) {
		t.Fatalf("Changed = %v, want %v", report.Changed, wantChanged)
	}
	for i := range wantChanged {
		if report.Changed[i] != wantChanged[i] {
			t.Errorf("Changed[%d] = %q, want %q", i, report.Changed[i], wantChanged[i])
		}
	}
	if _, ok := report.Deleted["gone"]; !ok || len(report.Deleted) != 1 {
		t.Errorf("Deleted = %v, want {gone}", report.Deleted)
	}
	if !boardChanged {
		t.Error("boardChanged = false, want true")
	}
}

func TestDiff_BoardOnlyAdvances(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev Snapshot
		next Snapshot
		want bool
	}{
		{"unchanged", Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, false},
		{"older", Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, Snapshot{Board: Fingerprint{ModTime: t0.Add(-time.Hour)}, BoardPresent: true}, false},
		{"newer", Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, Snapshot{Board: Fingerprint{ModTime: t0.Add(time.Millisecond)}, BoardPresent: true}, true},
		{"appeared", Snapshot{}, Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, true},
		{"removed", Snapshot{Board: Fingerprint{ModTime: t0}, BoardPresent: true}, Snapshot{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Diff(&tt.prev, &tt.next)
			if got != tt.want {
				t.Errorf("boardChanged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff_FirstScanIsBaseline(t *testing.T) {
	next := &Snapshot{Cards: map[string]Fingerprint{"/b/cards/todo/a.md": {}}, BoardPresent: true}
	report, boardChanged := Diff(nil, next)
	if !report.Empty() || boardChanged {
		t.Errorf("Diff(nil, next) = %+v, %v; want empty, false", report, boardChanged)
	}
}

func TestScan_MissingRootKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)
	card := filepath.Join(l.ColumnDir("todo"), "a.md")
	writeFile(t, card, "a")

	prev := Scan(l, nil, nil)
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("RemoveAll() failed: %v", err)
	}

	next := Scan(l, prev, nil)
	report, _ := Diff(prev, next)
	if !report.Empty() {
		t.Errorf("report = %+v, want empty while root is unavailable", report)
	}
}

func TestScan_UnreadableColumnKeepsPrevious(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	root := t.TempDir()
	l := layout.New(root)
	card := filepath.Join(l.ColumnDir("todo"), "a.md")
	writeFile(t, card, "a")

	prev := Scan(l, nil, nil)
	if err := os.Chmod(l.ColumnDir("todo"), 0o000); err != nil {
		t.Fatalf("Chmod() failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(l.ColumnDir("todo"), 0o755) })

	next := Scan(l, prev, nil)
	report, _ := Diff(prev, next)
	if !report.Empty() {
		t.Errorf("report = %+v, want empty for an unreadable column", report)
	}
}
