// Package daemon runs a board: it keeps the store in step with the directory
// and publishes what happens.
//
// The daemon:
//  1. Loads the board into a store
//  2. Watches the directory and folds every change report into the store
//  3. Tracks sync status against the board's cloud or git remote
//  4. Mirrors the store into the SQLite index and the WebSocket dashboard
//  5. Shuts everything down in reverse order
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mschirtzinger/mdboard/internal/cloudmeta"
	"github.com/mschirtzinger/mdboard/internal/config"
	"github.com/mschirtzinger/mdboard/internal/dashboard"
	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/index"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/syncstatus"
	"github.com/mschirtzinger/mdboard/internal/vcs"
	"github.com/mschirtzinger/mdboard/internal/watcher"
)

// ErrSuspendUnsupported is returned by Suspend when the active watcher
// backend cannot pause.
var ErrSuspendUnsupported = errors.New("watcher backend cannot be suspended")

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithProvider overrides the sync metadata provider chosen from config.
func WithProvider(p cloudmeta.Provider) Option {
	return func(d *Daemon) { d.provider = p }
}

// WithIndexPath overrides the index location, e.g. index.Memory.
func WithIndexPath(path string) Option {
	return func(d *Daemon) { d.indexPath = path }
}

// Daemon owns one board's long-running components.
type Daemon struct {
	root      string
	cfg       *config.Config
	logger    *slog.Logger
	provider  cloudmeta.Provider
	indexPath string

	store   *store.Store
	watcher watcher.Watcher
	tracker *syncstatus.Tracker
	index   *index.DB
	server  *dashboard.Server

	// closers run in reverse order on Stop.
	closers []func() error

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once

	// scans tracks rescans started by Resume; Stop cancels and waits for
	// them before closing the provider.
	scanCtx    context.Context
	scanCancel context.CancelFunc
	scans      sync.WaitGroup
}

// New loads the board at root and wires the components cfg enables. Nothing
// runs until Start.
func New(root string, cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	d := &Daemon{root: root, cfg: cfg, logger: slog.Default()}
	d.scanCtx, d.scanCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(d)
	}

	st, err := store.Open(root, format.Markdown{}, store.WithLogger(d.logger))
	if err != nil {
		return nil, err
	}
	d.store = st
	if d.indexPath == "" {
		d.indexPath = st.Layout().IndexPath()
	}

	if err := d.wire(); err != nil {
		d.scanCancel()
		d.close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) wire() error {
	w, err := watcher.New(d.cfg.WatcherKind(), d.root, watcher.Callbacks{
		OnCardsChanged: d.onCardsChanged,
		OnBoardChanged: d.onBoardChanged,
	},
		watcher.WithLogger(d.logger),
		watcher.WithPollInterval(d.cfg.Watch.PollInterval),
		watcher.WithDebounce(d.cfg.Watch.Debounce),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	d.watcher = w

	if d.provider == nil {
		d.provider = NewProvider(d.cfg.Sync, d.logger)
	}
	if d.provider != nil {
		if c, ok := d.provider.(io.Closer); ok {
			d.closers = append(d.closers, c.Close)
		}
		d.tracker = syncstatus.New(d.root, d.provider,
			syncstatus.WithInterval(d.cfg.Sync.Interval),
			syncstatus.WithLogger(d.logger),
		)
		d.tracker.OnRemoteChanges(func() {
			d.logger.Info("remote changes are available, run `mdboard sync` to download them")
		})
	}

	if d.cfg.Index.Enabled {
		db, err := index.Open(d.indexPath)
		if err != nil {
			// The index is a cache; the board works without it.
			d.logger.Warn("index disabled", "path", d.indexPath, "error", err)
		} else {
			d.index = db
			d.closers = append(d.closers, db.Close)
			stop, err := index.Follow(db, d.store, d.logger)
			if err != nil {
				d.logger.Warn("initial index build failed", "error", err)
			} else {
				d.closers = append(d.closers, func() error { stop(); return nil })
			}
		}
	}

	if d.cfg.Dashboard.Port > 0 {
		var handler *dashboard.Handler
		d.server = dashboard.NewServer(&dashboard.Config{
			Host:    d.cfg.Dashboard.Host,
			Port:    d.cfg.Dashboard.Port,
			Logger:  d.logger,
			Welcome: func() (dashboard.Message, error) { return handler.Snapshot() },
		})
		handler = dashboard.NewHandler(d.server, d.store, d.SyncState, d.logger)
		cancel := d.store.Subscribe(handler.OnStoreEvent)
		d.closers = append(d.closers, func() error { cancel(); return nil })
		if d.tracker != nil {
			d.tracker.OnStateChange(handler.OnSyncState)
		}
	}
	return nil
}

// NewProvider picks the sync metadata provider named by cfg. It returns nil
// when sync tracking is off.
func NewProvider(cfg config.SyncConfig, logger *slog.Logger) cloudmeta.Provider {
	switch cfg.Provider {
	case config.ProviderNone:
		return nil
	case config.ProviderAuto:
		if !vcs.IsGitAvailable() {
			logger.Debug("git not found, sync tracking disabled")
			return nil
		}
	}
	return cloudmeta.NewGitProvider(
		cloudmeta.WithFetch(cfg.Fetch),
		cloudmeta.WithGitLogger(logger),
	)
}

// Start runs every component and blocks until ctx is cancelled, then stops
// them. A failure to start any component stops the ones already running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return errors.New("daemon already started")
	}
	d.started = true
	d.mu.Unlock()

	d.logger.Info("starting daemon", "root", d.store.Layout().Root(), "cards", len(d.store.Cards()))

	if err := d.watcher.Start(); err != nil {
		_ = d.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Catch anything written between Open and the watcher's first snapshot.
	if result, err := d.store.Resync(); err != nil {
		d.logger.Warn("resync after start failed", "error", err)
	} else if result.Changed() {
		d.logger.Info("board changed while starting", "inserted", len(result.Inserted), "updated", len(result.Updated), "removed", len(result.Removed))
	}

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			_ = d.Stop()
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
	}

	if d.tracker != nil {
		d.tracker.Start(ctx)
	}

	<-ctx.Done()
	d.logger.Info("shutdown signal received")
	return d.Stop()
}

// Stop shuts everything down. It is safe to call more than once.
func (d *Daemon) Stop() error {
	var err error
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		d.scanCancel()
		d.scans.Wait()

		var errs []error
		if d.server != nil {
			errs = append(errs, d.server.Stop())
		}
		if d.watcher != nil {
			errs = append(errs, d.watcher.Stop())
		}
		if d.tracker != nil {
			d.tracker.Stop()
		}
		errs = append(errs, d.close())
		err = errors.Join(errs...)
		d.logger.Info("daemon stopped")
	})
	return err
}

func (d *Daemon) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	d.closers = nil
	return errors.Join(errs...)
}

// Suspend pauses change detection. Only the polling backend supports it.
func (d *Daemon) Suspend() error {
	s, ok := d.watcher.(interface{ Suspend() })
	if !ok {
		return ErrSuspendUnsupported
	}
	s.Suspend()
	d.logger.Info("change detection suspended")
	return nil
}

// Resume restarts change detection with an immediate check and rescans the
// sync status, since anything may have changed while suspended.
func (d *Daemon) Resume() error {
	r, ok := d.watcher.(interface{ Resume() })
	if !ok {
		return ErrSuspendUnsupported
	}
	r.Resume()
	d.logger.Info("change detection resumed")
	if d.tracker == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil
	}
	d.scans.Add(1)
	go func() {
		defer d.scans.Done()
		d.tracker.Scan(d.scanCtx)
	}()
	return nil
}

// The store logs skipped files and what changed; the daemon only forwards.
func (d *Daemon) onCardsChanged(report watcher.Report) {
	d.store.ApplyReport(report)
}

func (d *Daemon) onBoardChanged() {
	_ = d.store.ReloadBoard()
}

// Store returns the board store.
func (d *Daemon) Store() *store.Store { return d.store }

// Tracker returns the sync tracker, or nil when sync tracking is off.
func (d *Daemon) Tracker() *syncstatus.Tracker { return d.tracker }

// Index returns the query index, or nil when it is disabled.
func (d *Daemon) Index() *index.DB { return d.index }

// SyncState returns the current sync state.
func (d *Daemon) SyncState() syncstatus.State {
	if d.tracker == nil {
		return syncstatus.NotConfigured
	}
	return d.tracker.State()
}

// DashboardAddr returns the dashboard's listening address, or "" when the
// dashboard is disabled.
func (d *Daemon) DashboardAddr() string {
	if d.server == nil {
		return ""
	}
	return d.server.Addr()
}
