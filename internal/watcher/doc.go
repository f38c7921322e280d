// Package watcher detects changes to a board directory and reports them as
// normalized change reports.
//
// # Backends
//
// Two backends implement the same Watcher contract:
//
//   - EventWatcher: subscribes to filesystem notifications through fsnotify.
//     Event payloads are only used as a trigger; every batch of events causes
//     a full rescan that is diffed against the previous snapshot, because
//     notifications coalesce or go missing during bursts (branch switches,
//     cloud downloads of many files).
//   - PollWatcher: rescans on a fixed interval. Polling can be suspended while
//     the host process is in the background and performs one immediate check
//     when resumed.
//
// Use New with KindAuto to pick the event backend where the platform supports
// it and fall back to polling otherwise:
//
//	w, err := watcher.New(watcher.KindAuto, "/path/to/board", watcher.Callbacks{
//	    OnCardsChanged: func(r watcher.Report) { store.ApplyReport(r) },
//	    OnBoardChanged: func() { store.ReloadBoard() },
//	})
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(); err != nil {
//	    return err
//	}
//	defer w.Stop()
//
// # Snapshots
//
// Both backends keep a snapshot of (path → modification time, size) for
// cards/<column>/*.md and board.md. A report lists paths that are new or whose
// fingerprint changed, and the slugs of paths that disappeared. Deleted content
// is never recovered; a deletion only says that a tracked path is gone.
//
// A directory that cannot be read (permissions, ejected volume) keeps its
// previous snapshot entries, so an inaccessible area reads as "no changes this
// cycle" instead of a mass deletion.
//
// # Callbacks
//
// Callbacks run one at a time, either on the watcher's own goroutine or on a
// Dispatcher supplied with WithDispatcher. OnCardsChanged only fires for a
// non-empty report. OnBoardChanged fires when board.md's modification time
// advances. Callbacks that are still queued when Stop is called are dropped.
//
// # Lifecycle
//
// Start on a running watcher and Stop on a stopped watcher are no-ops, so app
// lifecycle transitions may race freely. A stopped watcher can be started
// again; it takes a fresh snapshot on start. A callback may call Stop; the
// loop running it exits as soon as the callback returns.
package watcher
