// Package ringchan provides a bounded, drop-oldest channel for handing
// session notifications to slower consumers such as a terminal renderer.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// Ring is a buffered channel whose producers never block: when the buffer
// is full the oldest element is discarded to make room.
//
//	r := ringchan.New[string](3)
//	for i := 0; i < 10; i++ {
//	    r.Push(fmt.Sprint(i))
//	}
//	r.Close()
//	for v := range r.C() {
//	    fmt.Println(v) // 7, 8, 9
//	}
//
// Reading through C bypasses the Popped counter; use Pop or TryPop when it
// matters.
type Ring[T any] struct {
	ch     chan T
	mu     sync.Mutex // serializes producers and Close
	closed bool
	stats  Stats
}

// New creates a ring holding at most capacity elements.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Push inserts v, dropping the oldest element if the ring is full. It
// reports whether an element was dropped. Push after Close is a no-op.
func (r *Ring[T]) Push(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}

	dropped := false
	for {
		select {
		case r.ch <- v:
			atomic.AddInt64(&r.stats.Pushed, 1)
			return dropped
		default:
		}
		// A consumer may empty the buffer between the two selects.
		select {
		case <-r.ch:
			atomic.AddInt64(&r.stats.Dropped, 1)
			dropped = true
		default:
		}
	}
}

// TryPush inserts v only if there is room.
func (r *Ring[T]) TryPush(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	select {
	case r.ch <- v:
		atomic.AddInt64(&r.stats.Pushed, 1)
		return true
	default:
		return false
	}
}

// Pop blocks until a value is available. ok is false once the ring is
// closed and drained.
func (r *Ring[T]) Pop() (v T, ok bool) {
	v, ok = <-r.ch
	if ok {
		atomic.AddInt64(&r.stats.Popped, 1)
	}
	return
}

// TryPop returns immediately; ok is false when nothing is buffered.
func (r *Ring[T]) TryPop() (v T, ok bool) {
	select {
	case v, ok = <-r.ch:
		if ok {
			atomic.AddInt64(&r.stats.Popped, 1)
		}
		return
	default:
		return v, false
	}
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return len(r.ch) }

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int { return cap(r.ch) }

// Close closes the receive side. It is safe to call more than once.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

// Stats returns a snapshot of the counters.
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Pushed:  atomic.LoadInt64(&r.stats.Pushed),
		Dropped: atomic.LoadInt64(&r.stats.Dropped),
		Popped:  atomic.LoadInt64(&r.stats.Popped),
	}
}

// Stats counts ring traffic.
type Stats struct {
	Pushed  int64
	Dropped int64
	Popped  int64
}
