package watcher

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/mdboard/internal/layout"
)

const (
	// DefaultPollInterval is how often the polling backend rescans.
	DefaultPollInterval = 2 * time.Second

	// DefaultDebounce is how long the event backend waits for a burst of
	// notifications to settle before rescanning.
	DefaultDebounce = 150 * time.Millisecond
)

// Kind selects a watcher backend.
type Kind string

const (
	// KindAuto uses events where available and falls back to polling.
	KindAuto Kind = "auto"
	// KindEvents uses OS filesystem notifications.
	KindEvents Kind = "events"
	// KindPoll rescans on an interval.
	KindPoll Kind = "poll"
)

// ParseKind converts a config value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAuto:
		return KindAuto, nil
	case KindEvents, KindPoll:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown watcher backend %q (want auto, events or poll)", s)
	}
}

// Report is the result of one detection cycle.
type Report struct {
	// Changed holds absolute paths of card files created or modified.
	Changed []string
	// Deleted holds slugs of card files that no longer exist at their last
	// known path.
	Deleted map[string]struct{}
}

// Empty reports whether the cycle found nothing.
func (r Report) Empty() bool {
	return len(r.Changed) == 0 && len(r.Deleted) == 0
}

// DeletedSlugs returns the deleted slugs in sorted order.
func (r Report) DeletedSlugs() []string {
	out := make([]string, 0, len(r.Deleted))
	for s := range r.Deleted {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Callbacks receive detection results.
type Callbacks struct {
	OnCardsChanged func(Report)
	OnBoardChanged func()
}

// Watcher is the capability shared by both backends.
type Watcher interface {
	// Start begins observing. It is a no-op if already started.
	Start() error
	// Stop ceases observing and releases resources. It is a no-op if not started.
	Stop() error
	// IsRunning reports whether the watcher is started.
	IsRunning() bool
}

// Dispatcher runs fn on the consumer's scheduling context.
type Dispatcher func(fn func())

type options struct {
	logger   *slog.Logger
	interval time.Duration
	debounce time.Duration
	dispatch Dispatcher
}

// Option configures a watcher.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPollInterval sets the polling backend's interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithDebounce sets the event backend's settle delay.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithDispatcher routes callbacks through d instead of calling them on the
// watcher goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatch = d }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		interval: DefaultPollInterval,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.interval <= 0 {
		o.interval = DefaultPollInterval
	}
	if o.debounce <= 0 {
		o.debounce = DefaultDebounce
	}
	return o
}

// New creates a watcher for the board at root using the requested backend.
func New(kind Kind, root string, cb Callbacks, opts ...Option) (Watcher, error) {
	switch kind {
	case KindEvents:
		return NewEventWatcher(root, cb, opts...), nil
	case KindPoll:
		return NewPollWatcher(root, cb, opts...), nil
	case KindAuto, "":
		if eventsSupported() {
			return NewEventWatcher(root, cb, opts...), nil
		}
		o := buildOptions(opts)
		o.logger.Info("filesystem events unavailable, falling back to polling", "root", root)
		return NewPollWatcher(root, cb, opts...), nil
	default:
		return nil, fmt.Errorf("unknown watcher backend %q", kind)
	}
}

func eventsSupported() bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	_ = w.Close()
	return true
}

// base holds what both backends share: lifecycle state, the snapshot and
// callback delivery.
type base struct {
	layout layout.Layout
	cb     Callbacks
	opts   options

	mu      sync.Mutex
	running bool
	gen     uint64
	done    chan struct{}
	wg      sync.WaitGroup
	// delivering is set while a callback runs. Stop called from inside a
	// callback must not wait for the loop that is running it.
	delivering bool

	// snapshot is only touched by the backend's loop goroutine after Start.
	snapshot *Snapshot
}

func newBase(root string, cb Callbacks, opts []Option) base {
	return base{
		layout: layout.New(root),
		cb:     cb,
		opts:   buildOptions(opts),
	}
}

// IsRunning reports whether the watcher is started.
func (b *base) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// stopLocked marks the watcher stopped and returns a func that waits for the
// loop to exit. Inside a callback the wait is skipped: the loop is the
// caller and exits once the callback returns.
func (b *base) stopLocked() (wait func()) {
	b.running = false
	close(b.done)
	if b.delivering {
		return func() {}
	}
	return b.wg.Wait
}

// cycle rescans, diffs against the previous snapshot and delivers the result.
func (b *base) cycle(gen uint64) {
	next := Scan(b.layout, b.snapshot, b.opts.logger)
	report, boardChanged := Diff(b.snapshot, next)
	b.snapshot = next

	if !report.Empty() {
		b.opts.logger.Debug("cards changed",
			"changed", len(report.Changed), "deleted", len(report.Deleted))
		b.deliver(gen, func() {
			if b.cb.OnCardsChanged != nil {
				b.cb.OnCardsChanged(report)
			}
		})
	}
	if boardChanged {
		b.opts.logger.Debug("board changed")
		b.deliver(gen, func() {
			if b.cb.OnBoardChanged != nil {
				b.cb.OnBoardChanged()
			}
		})
	}
}

func (b *base) deliver(gen uint64, fn func()) {
	guarded := func() {
		b.mu.Lock()
		if !b.running || b.gen != gen {
			b.mu.Unlock()
			return
		}
		b.delivering = true
		b.mu.Unlock()
		defer func() {
			b.mu.Lock()
			b.delivering = false
			b.mu.Unlock()
		}()
		fn()
	}
	if b.opts.dispatch != nil {
		b.opts.dispatch(guarded)
		return
	}
	guarded()
}
