// Package lifecycle tracks whether the process is draining.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the shutdown flag. GET /health reports shutting-down
// with 503 while it is true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx is done, then sets the
// shutdown flag. Returns the signal received, or nil if ctx ended first.
func WaitForSignal(ctx context.Context) os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var sig os.Signal
	select {
	case sig = <-sigs:
	case <-ctx.Done():
	}
	SetShuttingDown(true)
	return sig
}
