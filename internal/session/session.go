// Package session implements the peripheral and central chat sessions: the
// link state machine of each role, the message history, and (for the
// central) the discovered-device registry.
//
// A session owns all of its state and only touches it on its Scheduler.
// Public methods post the request to the scheduler and return immediately;
// outcomes are reported to the Observer. Getters such as State or Messages
// read the state directly and must therefore be called on the scheduler,
// typically from inside an Observer callback.
package session

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/transport"
)

// core is the role-independent part of a session.
type core struct {
	opts     Options
	sched    executor.Scheduler
	observer Observer
	logger   *logrus.Logger
	machine  *link.Machine
	history  *chat.MessageLog
	radio    transport.RadioState
	lastErr  error
}

func newCore(role link.Role, sched executor.Scheduler, obs Observer, opts *Options, logger *logrus.Logger) core {
	if logger == nil {
		logger = logrus.New()
	}
	if obs == nil {
		obs = BaseObserver{}
	}
	o := opts.withDefaults()

	c := core{
		opts:     o,
		sched:    sched,
		observer: obs,
		logger:   logger,
		machine:  link.New(role),
		history:  chat.NewMessageLog(o.HistoryCapacity),
	}
	c.machine.OnTransition(func(from, to link.State, t link.Trigger) {
		logger.WithFields(logrus.Fields{
			"role":    role,
			"from":    from.Label(role),
			"to":      to.Label(role),
			"trigger": t,
		}).Debug("Link state changed")
		obs.StateChanged(to)
	})
	return c
}

// fire applies t and logs, rather than surfaces, a rejected transition:
// callers check the state before firing, so a rejection means a stale event.
func (c *core) fire(t link.Trigger) bool {
	if err := c.machine.Fire(t); err != nil {
		c.logger.WithError(err).Debug("Transition rejected")
		return false
	}
	return true
}

func (c *core) fail(err *Error) {
	c.lastErr = err
	c.logger.WithFields(logrus.Fields{
		"role": c.machine.Role(),
		"kind": err.Kind,
	}).WithError(err).Warn("Session error")
	c.observer.Error(err)
}

func (c *core) clearError() {
	c.lastErr = nil
}

func (c *core) appendMessage(text string, dir chat.Direction) {
	if evicted := c.history.Append(chat.NewMessage(text, dir)); evicted > 0 {
		c.logger.WithField("evicted", evicted).Debug("Message history trimmed")
	}
	c.observer.MessageLogChanged(c.history.Messages())
}

func (c *core) clearHistory() {
	if c.history.Clear() {
		c.observer.MessageLogChanged([]chat.ChatMessage{})
	}
}

func (c *core) setRadio(state transport.RadioState) {
	if state != c.radio {
		c.logger.WithFields(logrus.Fields{
			"role":  c.machine.Role(),
			"radio": state,
		}).Info(state.Describe())
	}
	c.radio = state
	c.observer.RadioChanged(state)
}

// State returns the current link state.
func (c *core) State() link.State { return c.machine.State() }

// Messages returns the chat history, oldest first.
func (c *core) Messages() []chat.ChatMessage { return c.history.Messages() }

// Radio returns the last radio state reported by the transport.
func (c *core) Radio() transport.RadioState { return c.radio }

// LastError returns the most recent error surfaced to the observer, cleared
// by the next successful start or connect.
func (c *core) LastError() error { return c.lastErr }

func sameUUID(a, b string) bool {
	return normalizeUUID(a) == normalizeUUID(b)
}

func containsUUID(list []string, want string) bool {
	for _, u := range list {
		if sameUUID(u, want) {
			return true
		}
	}
	return false
}

func normalizeUUID(u string) string {
	return strings.ToLower(strings.ReplaceAll(u, "-", ""))
}
