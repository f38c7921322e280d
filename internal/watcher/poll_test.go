package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/mdboard/internal/layout"
)

func TestPollWatcher_SuspendResume(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)

	rec := newRecorder()
	// Ticks never fire during the test; only Resume triggers a check.
	p := NewPollWatcher(root, rec.callbacks(), WithPollInterval(time.Hour))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	p.Suspend()
	if !p.Suspended() {
		t.Fatal("Suspended() = false after Suspend")
	}

	card := filepath.Join(l.ColumnDir("todo"), "while-away.md")
	writeFile(t, card, "written in the background")

	select {
	case <-rec.signal:
		t.Fatal("callback fired while suspended")
	case <-time.After(100 * time.Millisecond):
	}

	p.Resume()
	rec.waitFor(t, 3*time.Second, func() bool { return rec.changedContains(card) })

	// A second Resume is a no-op and must not report the same change again.
	p.Resume()
	select {
	case <-rec.signal:
		t.Fatal("duplicate notification after resume")
	case <-time.After(100 * time.Millisecond):
	}
	if n, _ := rec.counts(); n != 1 {
		t.Errorf("reports = %d, want 1", n)
	}
}

func TestPollWatcher_SuspendedBeforeStart(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)

	rec := newRecorder()
	p := NewPollWatcher(root, rec.callbacks(), WithPollInterval(10*time.Millisecond))
	p.Suspend()
	if err := p.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	card := filepath.Join(l.ColumnDir("todo"), "a.md")
	writeFile(t, card, "a")

	select {
	case <-rec.signal:
		t.Fatal("callback fired while started suspended")
	case <-time.After(100 * time.Millisecond):
	}

	p.Resume()
	rec.waitFor(t, 3*time.Second, func() bool { return rec.changedContains(card) })
}

func TestPollWatcher_NoChangeNoCallback(t *testing.T) {
	root := t.TempDir()
	l := layout.New(root)
	writeFile(t, filepath.Join(l.ColumnDir("todo"), "a.md"), "a")
	writeFile(t, l.BoardPath(), "b")

	rec := newRecorder()
	p := NewPollWatcher(root, rec.callbacks(), WithPollInterval(10*time.Millisecond))
	if err := p.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer p.Stop()

	select {
	case <-rec.signal:
		t.Fatal("callback fired without any change")
	case <-time.After(150 * time.Millisecond):
	}
}
