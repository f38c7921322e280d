package watcher

import (
	"time"
)

// PollWatcher rescans the board on a fixed interval.
//
// Polling is meant for hosts where filesystem notifications are unavailable
// or unreliable (network mounts, some cloud-synced folders). It can be
// suspended while the host process is in the background.
type PollWatcher struct {
	base

	suspended bool
	control   chan bool
}

// NewPollWatcher creates a polling watcher for the board at root.
func NewPollWatcher(root string, cb Callbacks, opts ...Option) *PollWatcher {
	return &PollWatcher{base: newBase(root, cb, opts)}
}

// Start takes the baseline snapshot and begins the polling loop.
func (p *PollWatcher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	p.snapshot = Scan(p.layout, nil, p.opts.logger)
	p.gen++
	p.done = make(chan struct{})
	p.control = make(chan bool, 1)
	p.running = true

	p.wg.Add(1)
	go p.loop(p.gen, p.done, p.control, p.suspended)

	p.opts.logger.Debug("poll watcher started", "root", p.layout.Root(), "interval", p.opts.interval)
	return nil
}

// Stop ends the polling loop and waits for it to exit.
func (p *PollWatcher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	wait := p.stopLocked()
	p.mu.Unlock()

	wait()
	p.opts.logger.Debug("poll watcher stopped", "root", p.layout.Root())
	return nil
}

// Suspend pauses interval checks. It is a no-op when already suspended.
// The suspended state survives Stop and Start.
func (p *PollWatcher) Suspend() {
	p.setSuspended(true)
}

// Resume restarts interval checks and performs one immediate check so that
// changes made while suspended are picked up. It is a no-op when not
// suspended.
func (p *PollWatcher) Resume() {
	p.setSuspended(false)
}

// Suspended reports whether interval checks are paused.
func (p *PollWatcher) Suspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

func (p *PollWatcher) setSuspended(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.suspended == v {
		return
	}
	p.suspended = v
	if !p.running {
		return
	}

	// The control channel holds at most the latest request.
	select {
	case <-p.control:
	default:
	}
	p.control <- v
}

func (p *PollWatcher) loop(gen uint64, done <-chan struct{}, control <-chan bool, suspended bool) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.interval)
	defer ticker.Stop()
	if suspended {
		ticker.Stop()
	}

	for {
		select {
		case <-done:
			return

		case <-ticker.C:
			p.cycle(gen)

		case s := <-control:
			if s == suspended {
				continue
			}
			suspended = s
			if suspended {
				ticker.Stop()
				p.opts.logger.Debug("polling suspended")
				continue
			}
			p.opts.logger.Debug("polling resumed")
			p.cycle(gen)
			ticker.Reset(p.opts.interval)
		}
	}
}
