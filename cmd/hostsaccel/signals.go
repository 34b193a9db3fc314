package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals end a command cleanly. SIGHUP (terminal closed) and
// SIGQUIT are included because their default action exits without running
// deferred restores.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// signalContext returns a context cancelled by the first shutdown signal
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, shutdownSignals...)
}
