// Package executor provides the serialized execution context a session runs
// on. Every mutation of session state, every transport event and every
// timer callback is funneled through one Scheduler so that no two of them
// interleave.
package executor

import "time"

// Scheduler runs callbacks one at a time, in submission order.
type Scheduler interface {
	// Post queues fn. It never blocks and may be called from any goroutine,
	// including from inside a running callback.
	Post(fn func())

	// After queues fn once d has elapsed.
	After(d time.Duration, fn func()) Timer

	// Every queues fn each time d elapses until the timer is stopped.
	Every(d time.Duration, fn func()) Timer
}

// Timer cancels a scheduled callback. A callback that was already queued
// when Stop is called is discarded rather than run.
type Timer interface {
	Stop()
}
