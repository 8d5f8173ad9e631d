package main

import (
	"context"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/groutine"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/ringchan"
	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport"
)

// consoleBacklog bounds the notices waiting for the renderer. Every notice
// carries a full snapshot, so dropping old ones loses no chat text.
const consoleBacklog = 64

type noticeKind int

const (
	noticeState noticeKind = iota
	noticeError
	noticeMessages
	noticeDevices
	noticeRadio
)

type notice struct {
	kind     noticeKind
	state    link.State
	err      error
	messages []chat.ChatMessage
	devices  []registry.DiscoveredPeer
	radio    transport.RadioState
}

var (
	sentColor     = color.New(color.FgGreen)
	receivedColor = color.New(color.FgCyan)
	errorColor    = color.New(color.FgRed)
	stateColor    = color.New(color.FgYellow)
)

// console is the terminal Observer. Session callbacks only push snapshots
// onto a ring; a separate goroutine renders them so a slow terminal never
// stalls the session loop.
type console struct {
	session.BaseObserver

	out  io.Writer
	role link.Role
	ring *ringchan.Ring[notice]
	done chan struct{}
	once sync.Once

	// OnDevices and OnRadio run on the render goroutine.
	OnDevices func([]registry.DiscoveredPeer)
	OnRadio   func(prev, cur transport.RadioState)

	// ShowMessages and ShowStates can be turned off for table-only output.
	ShowMessages bool
	ShowStates   bool

	lastID uuid.UUID
	radio  transport.RadioState
}

func newConsole(out io.Writer, role link.Role) *console {
	return &console{
		out:          out,
		role:         role,
		ring:         ringchan.New[notice](consoleBacklog),
		done:         make(chan struct{}),
		ShowMessages: true,
		ShowStates:   true,
		radio:        transport.RadioUnknown,
	}
}

// Start launches the render goroutine.
func (c *console) Start(ctx context.Context) {
	groutine.Go(ctx, "console", func(context.Context) {
		defer close(c.done)
		for {
			n, ok := c.ring.Pop()
			if !ok {
				return
			}
			c.render(n)
		}
	})
}

// Close renders what is still queued and stops the render goroutine.
func (c *console) Close() {
	c.once.Do(func() {
		c.ring.Close()
		<-c.done
	})
}

func (c *console) StateChanged(state link.State) {
	c.ring.Push(notice{kind: noticeState, state: state})
}

func (c *console) Error(err error) {
	c.ring.Push(notice{kind: noticeError, err: err})
}

func (c *console) MessageLogChanged(messages []chat.ChatMessage) {
	c.ring.Push(notice{kind: noticeMessages, messages: messages})
}

func (c *console) DeviceRegistryChanged(peers []registry.DiscoveredPeer) {
	c.ring.Push(notice{kind: noticeDevices, devices: peers})
}

func (c *console) RadioChanged(state transport.RadioState) {
	c.ring.Push(notice{kind: noticeRadio, radio: state})
}

func (c *console) render(n notice) {
	switch n.kind {
	case noticeState:
		if c.ShowStates {
			stateColor.Fprintf(c.out, "* %s\n", n.state.Label(c.role))
		}
	case noticeError:
		errorColor.Fprintf(c.out, "ERROR: %s\n", FormatUserError(n.err))
	case noticeMessages:
		if c.ShowMessages {
			c.renderMessages(n.messages)
		}
	case noticeDevices:
		if c.OnDevices != nil {
			c.OnDevices(n.devices)
		}
	case noticeRadio:
		prev := c.radio
		c.radio = n.radio
		if prev != n.radio && c.ShowStates {
			stateColor.Fprintf(c.out, "* %s\n", n.radio.Describe())
		}
		if c.OnRadio != nil {
			c.OnRadio(prev, n.radio)
		}
	}
}

// renderMessages prints the part of the snapshot not printed yet. The log
// is append-only between clears, so everything after the last printed
// message is new. If that message is gone the log was cleared or rolled
// over, and the whole snapshot is new.
func (c *console) renderMessages(messages []chat.ChatMessage) {
	start := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].ID == c.lastID {
			start = i + 1
			break
		}
	}

	for _, m := range messages[start:] {
		if m.IsSent() {
			sentColor.Fprintf(c.out, "> %s\n", m.Text)
		} else {
			receivedColor.Fprintf(c.out, "< %s\n", m.Text)
		}
	}
	if len(messages) > 0 {
		c.lastID = messages[len(messages)-1].ID
	} else {
		c.lastID = uuid.Nil
	}
}
