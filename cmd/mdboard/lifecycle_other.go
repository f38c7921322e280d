//go:build windows

package main

import "github.com/mschirtzinger/mdboard/internal/daemon"

// Windows has no user signals; the watch runs until interrupted.
func handleLifecycleSignals(*daemon.Daemon) (stop func()) {
	return func() {}
}
