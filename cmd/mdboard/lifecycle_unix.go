//go:build !windows

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/mschirtzinger/mdboard/internal/daemon"
)

// handleLifecycleSignals maps SIGUSR1 to Suspend and SIGUSR2 to Resume, the
// way a host app pauses the board while it is in the background.
func handleLifecycleSignals(d *daemon.Daemon) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGUSR1, unix.SIGUSR2)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigChan:
				var err error
				if sig == unix.SIGUSR1 {
					err = d.Suspend()
				} else {
					err = d.Resume()
				}
				if err != nil {
					logger.Warn("lifecycle signal ignored", "signal", sig, "error", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
