package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/model"
	"github.com/mschirtzinger/mdboard/internal/watcher"
)

func report(changed []string, deleted ...string) watcher.Report {
	r := watcher.Report{Changed: changed, Deleted: make(map[string]struct{})}
	for _, d := range deleted {
		r.Deleted[d] = struct{}{}
	}
	return r
}

// snapshotCards captures the in-memory model for comparison.
func snapshotCards(s *Store) map[string]*model.Card {
	out := make(map[string]*model.Card)
	for _, c := range s.Cards() {
		out[c.Title] = c
	}
	return out
}

func sameModel(a, b map[string]*model.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for k, c := range a {
		if !c.Equal(b[k]) {
			return false
		}
	}
	return true
}

func TestApplyReport_InsertUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	id := model.NewCardID()
	path := writeCardFile(t, s, "todo", "external", &model.Card{ID: id, Title: "External", CreatedAt: fixedNow})

	res := s.ApplyReport(report([]string{path}))
	if len(res.Inserted) != 1 || res.Inserted[0] != "External" {
		t.Fatalf("Inserted = %v", res.Inserted)
	}

	writeCardFile(t, s, "todo", "external", &model.Card{ID: id, Title: "External", Body: "edited", CreatedAt: fixedNow})
	res = s.ApplyReport(report([]string{path}))
	if len(res.Updated) != 1 {
		t.Fatalf("Updated = %v", res.Updated)
	}
	if c, _ := s.Card("External"); c.Body != "edited" {
		t.Errorf("Body = %q, want edited", c.Body)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	res = s.ApplyReport(report(nil, "external"))
	if len(res.Removed) != 1 {
		t.Fatalf("Removed = %v", res.Removed)
	}
	if len(s.Cards()) != 0 {
		t.Error("card still loaded after its file was deleted")
	}
}

func TestApplyReport_Idempotent(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, s *Store) watcher.Report
	}{
		{
			name: "insert",
			setup: func(t *testing.T, s *Store) watcher.Report {
				p := writeCardFile(t, s, "todo", "a", &model.Card{ID: model.NewCardID(), Title: "A", CreatedAt: fixedNow})
				return report([]string{p})
			},
		},
		{
			name: "rename",
			setup: func(t *testing.T, s *Store) watcher.Report {
				c, err := s.CreateCard("todo", "Old", "", nil)
				if err != nil {
					t.Fatal(err)
				}
				if err := os.Remove(s.Layout().CardPath("todo", "Old")); err != nil {
					t.Fatal(err)
				}
				renamed := c.Clone()
				renamed.Title = "New"
				p := writeCardFile(t, s, "todo", "new", renamed)
				return report([]string{p}, "old")
			},
		},
		{
			name: "delete",
			setup: func(t *testing.T, s *Store) watcher.Report {
				if _, err := s.CreateCard("doing", "Doomed", "", nil); err != nil {
					t.Fatal(err)
				}
				if err := os.Remove(s.Layout().CardPath("doing", "Doomed")); err != nil {
					t.Fatal(err)
				}
				return report(nil, "doomed")
			},
		},
		{
			name: "malformed",
			setup: func(t *testing.T, s *Store) watcher.Report {
				p := filepath.Join(s.Layout().ColumnDir("todo"), "broken.md")
				if err := os.WriteFile(p, []byte("---\nid: [\n---\n"), 0o644); err != nil {
					t.Fatal(err)
				}
				return report([]string{p})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			r := tt.setup(t, s)

			s.ApplyReport(r)
			once := snapshotCards(s)
			second := s.ApplyReport(r)
			twice := snapshotCards(s)

			if !sameModel(once, twice) {
				t.Errorf("model changed on second application:\n once  %v\n twice %v", once, twice)
			}
			if second.Changed() {
				t.Errorf("second application reported changes: %+v", second)
			}
		})
	}
}

func TestApplyReport_RenameIsNotLoss(t *testing.T) {
	tests := []struct {
		name   string
		withID bool
	}{
		{"stable id", true},
		{"legacy file without id", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			c := &model.Card{Title: "Before", Body: "keep me", CreatedAt: fixedNow}
			if tt.withID {
				c.ID = model.NewCardID()
			}
			oldPath := writeCardFile(t, s, "todo", "before", c)
			s.ApplyReport(report([]string{oldPath}))

			if err := os.Remove(oldPath); err != nil {
				t.Fatal(err)
			}
			renamed := c.Clone()
			renamed.Title = "After"
			newPath := writeCardFile(t, s, "todo", "after", renamed)

			s.ApplyReport(report([]string{newPath}, "before"))

			cards := s.Cards()
			if len(cards) != 1 {
				t.Fatalf("len(Cards()) = %d, want 1: %v", len(cards), titles(cards))
			}
			if cards[0].Title != "After" || cards[0].Body != "keep me" {
				t.Errorf("card = %+v", cards[0])
			}
		})
	}
}

func TestApplyReport_ShipItMovedToDone(t *testing.T) {
	root := t.TempDir()
	if err := Init(root, "Scenario", format.Markdown{}); err != nil {
		t.Fatal(err)
	}
	s, err := Open(root, format.Markdown{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveColumn("doing"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateCard("todo", "Ship it", "", nil); err != nil {
		t.Fatal(err)
	}

	from := s.Layout().CardPath("todo", "Ship it")
	to := s.Layout().CardPath("done", "Ship it")
	if err := os.Rename(from, to); err != nil {
		t.Fatal(err)
	}

	s.ApplyReport(report([]string{to}, "ship-it"))

	cards := s.Cards()
	if len(cards) != 1 {
		t.Fatalf("len(Cards()) = %d, want 1", len(cards))
	}
	if cards[0].Column != "done" {
		t.Errorf("Column = %q, want done", cards[0].Column)
	}
}

func TestApplyReport_DeletedSlugStillOnDisk(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("todo", "Wanderer", "", nil); err != nil {
		t.Fatal(err)
	}
	from := s.Layout().CardPath("todo", "Wanderer")
	to := s.Layout().CardPath("doing", "Wanderer")
	if err := os.Rename(from, to); err != nil {
		t.Fatal(err)
	}

	// The new location is missing from the report; the card must follow the
	// file instead of being dropped.
	res := s.ApplyReport(report(nil, "wanderer"))

	if len(res.Removed) != 0 {
		t.Errorf("Removed = %v, want none", res.Removed)
	}
	c, err := s.Card("Wanderer")
	if err != nil {
		t.Fatalf("card lost: %v", err)
	}
	if c.Column != "doing" {
		t.Errorf("Column = %q, want doing", c.Column)
	}
}

func TestApplyReport_MalformedSkipped(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("todo", "Stable", "v1", nil); err != nil {
		t.Fatal(err)
	}
	stable := s.Layout().CardPath("todo", "Stable")
	if err := os.WriteFile(stable, []byte("---\ntitle: [oops\n---\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fresh := writeCardFile(t, s, "done", "fresh", &model.Card{Title: "Fresh", CreatedAt: fixedNow})

	res := s.ApplyReport(report([]string{stable, fresh}))

	if len(res.Skipped) != 1 || res.Skipped[0] != stable {
		t.Errorf("Skipped = %v, want [%s]", res.Skipped, stable)
	}
	if _, err := s.Card("Fresh"); err != nil {
		t.Errorf("rest of batch not applied: %v", err)
	}
	if c, _ := s.Card("Stable"); c == nil || c.Body != "v1" {
		t.Errorf("last good version not kept: %+v", c)
	}
}

func TestApplyReport_OrphanFlagged(t *testing.T) {
	s := newTestStore(t)
	p := writeCardFile(t, s, "icebox", "frozen", &model.Card{Title: "Frozen", CreatedAt: fixedNow})

	res := s.ApplyReport(report([]string{p}))

	if len(res.Orphaned) != 1 || res.Orphaned[0] != "Frozen" {
		t.Errorf("Orphaned = %v", res.Orphaned)
	}
	if _, err := s.Card("Frozen"); err != nil {
		t.Errorf("orphaned card dropped: %v", err)
	}
}

func TestApplyReport_SelfWritesAreNoops(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("todo", "Mine", "", nil); err != nil {
		t.Fatal(err)
	}
	path := s.Layout().CardPath("todo", "Mine")

	res := s.ApplyReport(report([]string{path}))
	if res.Changed() {
		t.Errorf("self-caused change reported as %+v", res)
	}

	if err := s.DeleteCard("Mine"); err != nil {
		t.Fatal(err)
	}
	res = s.ApplyReport(report(nil, "mine"))
	if res.Changed() {
		t.Errorf("self-caused delete reported as %+v", res)
	}
}

func TestReloadBoard(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("doing", "In flight", "", nil); err != nil {
		t.Fatal(err)
	}

	b := s.Board()
	b.Title = "Edited elsewhere"
	b.Columns = []model.Column{{ID: "todo", Name: "To Do"}, {ID: "done", Name: "Done"}}
	data, err := format.Markdown{}.SerializeBoard(b)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Layout().BoardPath(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.ReloadBoard(); err != nil {
		t.Fatalf("ReloadBoard() failed: %v", err)
	}
	if s.Board().Title != "Edited elsewhere" {
		t.Errorf("Title = %q", s.Board().Title)
	}
	if o := s.Orphans(); len(o) != 1 || o[0].Title != "In flight" {
		t.Errorf("Orphans() = %v, want the card in the removed column", titles(o))
	}

	if err := os.WriteFile(s.Layout().BoardPath(), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.ReloadBoard(); err == nil {
		t.Error("ReloadBoard() on a malformed file succeeded")
	}
	if s.Board().Title != "Edited elsewhere" {
		t.Error("malformed board.md replaced the loaded board")
	}
}

func TestResync_NoSilentDataLoss(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("todo", "Local", "", nil); err != nil {
		t.Fatal(err)
	}
	writeCardFile(t, s, "done", "remote-one", &model.Card{ID: model.NewCardID(), Title: "Remote one", CreatedAt: fixedNow})
	writeCardFile(t, s, "doing", "remote-two", &model.Card{Title: "Remote two", CreatedAt: fixedNow})
	if err := os.Remove(s.Layout().CardPath("todo", "Local")); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Resync(); err != nil {
		t.Fatalf("Resync() failed: %v", err)
	}

	// Every card file on disk has a loaded card, and nothing else is loaded.
	onDisk := watcher.Scan(s.Layout(), nil, nil)
	if len(onDisk.Cards) != len(s.Cards()) {
		t.Fatalf("disk has %d cards, memory has %d", len(onDisk.Cards), len(s.Cards()))
	}
	for path := range onDisk.Cards {
		found := false
		for _, c := range s.Cards() {
			if p, _ := s.Path(c.Title); p == path {
				found = true
			}
		}
		if !found {
			t.Errorf("file %s has no loaded card", path)
		}
	}
}

// TestWatcherDrivesStore runs the polling watcher against a live store.
func TestWatcherDrivesStore(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateCard("todo", "Ship it", "", nil); err != nil {
		t.Fatal(err)
	}

	moved := make(chan struct{}, 1)
	w := watcher.NewPollWatcher(s.Layout().Root(), watcher.Callbacks{
		OnCardsChanged: func(r watcher.Report) {
			s.ApplyReport(r)
			if c, err := s.Card("Ship it"); err == nil && c.Column == "done" {
				select {
				case moved <- struct{}{}:
				default:
				}
			}
		},
		OnBoardChanged: func() { _ = s.ReloadBoard() },
	}, watcher.WithPollInterval(20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Rename(s.Layout().CardPath("todo", "Ship it"), s.Layout().CardPath("done", "Ship it")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-moved:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for the move to be reconciled")
	}
	if n := len(s.Cards()); n != 1 {
		t.Errorf("len(Cards()) = %d, want 1", n)
	}
}
