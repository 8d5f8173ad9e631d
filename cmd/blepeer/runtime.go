package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/transport"
)

// shutdownTimeout bounds how long a command waits for its session to close.
const shutdownTimeout = 2 * time.Second

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// shutdown closes a session and waits until the loop has run the close.
func shutdown(loop *executor.Loop, closeSession func()) {
	closeSession()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = loop.Call(ctx, func() {})
}

// scanWhenReady starts scanning each time the radio comes up. A central
// does not scan on its own after power on.
func scanWhenReady(start func()) func(prev, cur transport.RadioState) {
	return func(prev, cur transport.RadioState) {
		if cur.Ready() && !prev.Ready() {
			start()
		}
	}
}
