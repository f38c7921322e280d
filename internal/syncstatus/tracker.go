package syncstatus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mschirtzinger/mdboard/internal/cloudmeta"
	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// DefaultInterval is how often the tracker rescans without a notification.
const DefaultInterval = 30 * time.Second

// ErrResolveUnsupported is returned by Resolve when the provider cannot
// settle conflicts.
var ErrResolveUnsupported = errors.New("provider cannot resolve conflicts")

// Option configures a Tracker.
type Option func(*Tracker)

// WithInterval sets the periodic scan interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// Tracker keeps the sync state of one board root current.
type Tracker struct {
	root     string
	provider cloudmeta.Provider
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	state    State
	files    []cloudmeta.FileMetadata
	lastErr  error
	onState  []func(from, to State)
	onRemote []func()

	// scanMu serializes scans so transitions are observed in order.
	scanMu sync.Mutex

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	// done is closed when the loop returns, which it does on its own for a
	// root that is not cloud backed.
	done chan struct{}
}

// New returns a tracker in state NotConfigured. Call Start or Scan.
func New(root string, provider cloudmeta.Provider, opts ...Option) *Tracker {
	t := &Tracker{
		root:     root,
		provider: provider,
		logger:   slog.Default(),
		interval: DefaultInterval,
		state:    NotConfigured,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnStateChange registers fn to run after every state transition.
// Callbacks run on the scanning goroutine.
func (t *Tracker) OnStateChange(fn func(from, to State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = append(t.onState, fn)
}

// OnRemoteChanges registers fn to run once each time the state becomes
// RemoteChanges from any other state.
func (t *Tracker) OnRemoteChanges(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRemote = append(t.onRemote, fn)
}

// State returns the state computed by the last scan.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Files returns the metadata seen by the last successful scan.
func (t *Tracker) Files() []cloudmeta.FileMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]cloudmeta.FileMetadata(nil), t.files...)
}

// Err returns the provider error behind an Error state, or nil.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Start scans immediately, then on every interval and whenever the
// provider signals a change. If the root turns out not to be cloud backed
// the loop ends after the first scan, and a later Start checks again.
// Start on a running tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.running {
		select {
		case <-t.done:
			t.reapLocked()
		default:
			return
		}
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.loop(ctx, t.done)
}

// Stop ends background scanning and waits for an in-flight scan. Calling
// Stop twice is a no-op.
func (t *Tracker) Stop() {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if !t.running {
		return
	}
	t.reapLocked()
}

func (t *Tracker) reapLocked() {
	t.cancel()
	t.wg.Wait()
	t.running = false
}

func (t *Tracker) loop(ctx context.Context, done chan struct{}) {
	defer t.wg.Done()
	defer close(done)

	if t.Scan(ctx) == NotConfigured {
		t.logger.Info("board is not cloud backed, sync tracking disabled", "root", t.root)
		return
	}

	var changes <-chan struct{}
	if n, ok := t.provider.(cloudmeta.Notifier); ok {
		changes = n.Changes()
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Scan(ctx)
		case <-changes:
			t.logger.Debug("provider signalled a change, rescanning")
			t.Scan(ctx)
		}
	}
}

// Scan queries the provider once and updates the state.
func (t *Tracker) Scan(ctx context.Context) State {
	t.scanMu.Lock()
	defer t.scanMu.Unlock()

	if !t.provider.IsCloudBacked(t.root) {
		t.set(NotConfigured, nil, nil)
		return NotConfigured
	}

	files, err := t.provider.Query(ctx, t.root)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by Stop; keep the last state.
			return t.State()
		}
		t.logger.Warn("sync metadata scan failed", "root", t.root, "error", err)
		t.set(Error, nil, err)
		return Error
	}

	state := Reduce(files)
	t.set(state, files, nil)
	return state
}

// Sync requests the download of every file the remote has and local lacks,
// then rescans. A download failure is returned after the rescan.
func (t *Tracker) Sync(ctx context.Context) (State, error) {
	if !t.provider.IsCloudBacked(t.root) {
		t.Scan(ctx)
		return NotConfigured, cloudmeta.ErrNotCloudBacked
	}

	files, err := t.provider.Query(ctx, t.root)
	if err != nil {
		return t.Scan(ctx), fmt.Errorf("failed to query sync metadata: %w", err)
	}

	var pending []string
	for _, f := range files {
		if f.DownloadStatus == cloudmeta.NotDownloaded {
			pending = append(pending, f.Path)
		}
	}

	var downloadErr error
	if len(pending) > 0 {
		t.logger.Info("downloading remote changes", "files", len(pending))
		if downloadErr = t.provider.Download(ctx, pending); downloadErr != nil {
			t.logger.Warn("download failed", "error", downloadErr)
		}
	}
	return t.Scan(ctx), downloadErr
}

// Push rescans. Uploads happen on their own once files are written.
func (t *Tracker) Push(ctx context.Context) State {
	return t.Scan(ctx)
}

// Resolve keeps one side of a conflicted file and rescans.
func (t *Tracker) Resolve(ctx context.Context, path string, side vcs.Side) (State, error) {
	r, ok := t.provider.(cloudmeta.Resolver)
	if !ok {
		return t.State(), ErrResolveUnsupported
	}
	if err := r.Resolve(ctx, path, side); err != nil {
		return t.State(), err
	}
	t.logger.Info("resolved conflict", "path", path, "kept", side)
	return t.Scan(ctx), nil
}

func (t *Tracker) set(state State, files []cloudmeta.FileMetadata, err error) {
	t.mu.Lock()
	prev := t.state
	t.state = state
	t.lastErr = err
	if err == nil {
		t.files = files
	}
	onState := append(([]func(State, State))(nil), t.onState...)
	onRemote := append(([]func())(nil), t.onRemote...)
	t.mu.Unlock()

	if prev == state {
		return
	}
	t.logger.Info("sync state changed", "from", prev, "to", state)
	for _, fn := range onState {
		fn(prev, state)
	}
	if state == RemoteChanges {
		for _, fn := range onRemote {
			fn()
		}
	}
}
