package executor

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until
// RunPending or Advance is called, and time only moves through Advance.
type Manual struct {
	now    time.Duration
	queue  []func()
	timers []*manualTimer
	seq    int
}

// NewManual returns an idle manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// Post implements Scheduler.
func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	return m.add(d, d, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) *manualTimer {
	m.seq++
	t := &manualTimer{due: m.now + d, period: period, fn: fn, seq: m.seq}
	m.timers = append(m.timers, t)
	return t
}

// RunPending runs queued callbacks, including ones they post, until the queue is empty.
// It returns the number of callbacks run.
func (m *Manual) RunPending() int {
	n := 0
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
		n++
	}
	return n
}

// Pending returns the number of queued callbacks.
func (m *Manual) Pending() int { return len(m.queue) }

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration { return m.now }

// Advance moves the clock forward by d, firing due timers in deadline order
// and draining the queue after each one.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	m.RunPending()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.now = t.due
		if t.period > 0 {
			t.due += t.period
		} else {
			t.fired = true
		}
		fn := t.fn
		m.Post(func() {
			if !t.stopped {
				fn()
			}
		})
		m.RunPending()
	}
	m.now = target
}

// ActiveTimers returns the number of timers that have not fired or been stopped.
func (m *Manual) ActiveTimers() int {
	n := 0
	for _, t := range m.timers {
		if t.live() {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(limit time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if t.live() {
			live = append(live, t)
		}
	}
	m.timers = live

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due == m.timers[j].due {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].due < m.timers[j].due
	})
	if len(m.timers) == 0 || m.timers[0].due > limit {
		return nil
	}
	return m.timers[0]
}

type manualTimer struct {
	due     time.Duration
	period  time.Duration
	fn      func()
	seq     int
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() { t.stopped = true }

func (t *manualTimer) live() bool { return !t.stopped && !t.fired }
