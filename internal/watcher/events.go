package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventWatcher watches the board with OS filesystem notifications.
//
// fsnotify is not recursive, so the watcher subscribes to the board root
// (board.md and the cards directory appearing), the cards directory (column
// directories coming and going) and each column directory.
type EventWatcher struct {
	base

	fsw     *fsnotify.Watcher
	watched map[string]bool
}

// NewEventWatcher creates an event-driven watcher for the board at root.
// It does not touch the filesystem until Start.
func NewEventWatcher(root string, cb Callbacks, opts ...Option) *EventWatcher {
	return &EventWatcher{base: newBase(root, cb, opts)}
}

// Start subscribes to notifications and takes the baseline snapshot.
func (w *EventWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(w.layout.Root()); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch board root %s: %w", w.layout.Root(), err)
	}

	w.fsw = fsw
	w.watched = map[string]bool{w.layout.Root(): true}
	w.syncWatches()

	w.snapshot = Scan(w.layout, nil, w.opts.logger)
	w.gen++
	w.done = make(chan struct{})
	w.running = true

	w.wg.Add(1)
	go w.processEvents(w.gen, w.done)

	w.opts.logger.Debug("event watcher started", "root", w.layout.Root())
	return nil
}

// Stop unsubscribes and waits for the event loop to exit. It may be called
// from a callback.
func (w *EventWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	wait := w.stopLocked()
	fsw := w.fsw
	w.mu.Unlock()

	// Closing the fsnotify watcher unblocks the event loop.
	err := fsw.Close()
	wait()

	w.opts.logger.Debug("event watcher stopped", "root", w.layout.Root())
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// processEvents collects notifications until the debounce timer fires, then
// runs one detection cycle for the whole batch.
func (w *EventWatcher) processEvents(gen uint64, done <-chan struct{}) {
	defer w.wg.Done()

	timer := time.NewTimer(w.opts.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-done:
			timer.Stop()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.syncWatches()
			}
			if !pending {
				pending = true
				timer.Reset(w.opts.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Overflow means events were dropped; the rescan covers them.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.opts.logger.Warn("filesystem event queue overflowed, rescanning")
			} else {
				w.opts.logger.Warn("filesystem watcher error", "error", err)
			}
			if !pending {
				pending = true
				timer.Reset(w.opts.debounce)
			}

		case <-timer.C:
			pending = false
			w.syncWatches()
			w.cycle(gen)
		}
	}
}

// relevant filters events down to the files and directories the snapshot
// covers.
func (w *EventWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	path := filepath.Clean(event.Name)
	if w.layout.IsBoardFile(path) {
		return true
	}
	cards := w.layout.CardsDir()
	if path == cards || filepath.Dir(path) == cards {
		return true
	}
	_, _, ok := w.layout.Resolve(path)
	return ok
}

// syncWatches subscribes to the cards directory and every column directory
// that is not yet watched. Removed directories drop out of fsnotify on
// their own.
func (w *EventWatcher) syncWatches() {
	dirs := []string{w.layout.CardsDir()}
	if entries, err := os.ReadDir(w.layout.CardsDir()); err == nil {
		for _, e := range entries {
			if e.IsDir() && !isHidden(e.Name()) {
				dirs = append(dirs, filepath.Join(w.layout.CardsDir(), e.Name()))
			}
		}
	}

	for _, dir := range dirs {
		if w.watched[dir] && w.stillWatched(dir) {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.opts.logger.Warn("failed to watch directory", "path", dir, "error", err)
			}
			delete(w.watched, dir)
			continue
		}
		w.watched[dir] = true
	}
}

func (w *EventWatcher) stillWatched(dir string) bool {
	for _, p := range w.fsw.WatchList() {
		if p == dir {
			return true
		}
	}
	return false
}
