package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/groutine"
)

// Loop is a Scheduler backed by a single goroutine draining an unbounded FIFO.
//
// The queue is unbounded so that Post never blocks: transport callbacks
// must not stall on a busy session, and callbacks posting follow-up work
// must not deadlock against themselves.
type Loop struct {
	name   string
	logger *logrus.Logger

	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	started atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewLoop returns a stopped loop. Call Start to begin draining.
func NewLoop(name string, logger *logrus.Logger) *Loop {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loop{
		name:   name,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the loop goroutine. It runs until ctx is done or Close is called.
func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)

	groutine.Go(ctx, l.name, func(ctx context.Context) {
		defer close(l.done)
		l.logger.WithField("loop", l.name).Debug("Session loop started")

		for {
			select {
			case <-ctx.Done():
				// Work posted from here on waits for Flush.
				l.logger.WithField("loop", l.name).Debug("Session loop stopped")
				return
			case <-l.wake:
				l.drain(ctx)
			}
		}
	})
}

func (l *Loop) drain(ctx context.Context) {
	for ctx.Err() == nil {
		fn, ok := l.next()
		if !ok {
			return
		}
		fn()
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Post implements Scheduler. Posts after Close are dropped.
func (l *Loop) Post(fn func()) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call posts fn and waits for it to run. It must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// After implements Scheduler.
func (l *Loop) After(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.stopped.Load() {
				fn()
			}
		})
	})
	return t
}

// Every implements Scheduler.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{}
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	t.ticker = ticker
	t.stop = stop

	groutine.Go(context.Background(), l.name+"-ticker", func(context.Context) {
		for {
			select {
			case <-stop:
				return
			case <-l.done:
				ticker.Stop()
				return
			case <-ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	})
	return t
}

// Close stops the loop and waits for the running callback, if any, to return.
func (l *Loop) Close() {
	if !l.started.Load() {
		l.closed.Store(true)
		return
	}
	l.closed.Store(true)
	l.cancel()
	<-l.done
}

// Flush stops the loop like Close, then runs every callback still queued
// on the calling goroutine, in order. Callbacks posted while flushing are
// dropped.
func (l *Loop) Flush() {
	l.Close()
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		fn()
	}
}

type loopTimer struct {
	stopped atomic.Bool
	timer   *time.Timer
	ticker  *time.Ticker
	stop    chan struct{}
}

func (t *loopTimer) Stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.stop)
	}
}
