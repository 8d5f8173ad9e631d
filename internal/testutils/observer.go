package testutils

import (
	"sync"

	"github.com/srg/blepeer/internal/chat"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/transport"
)

// RecordingObserver keeps every notification a session delivers.
type RecordingObserver struct {
	mu       sync.Mutex
	states   []link.State
	errors   []error
	messages [][]chat.ChatMessage
	devices  [][]registry.DiscoveredPeer
	radio    []transport.RadioState
}

func (o *RecordingObserver) StateChanged(s link.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *RecordingObserver) Error(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

func (o *RecordingObserver) MessageLogChanged(msgs []chat.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msgs)
}

func (o *RecordingObserver) DeviceRegistryChanged(peers []registry.DiscoveredPeer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices = append(o.devices, peers)
}

func (o *RecordingObserver) RadioChanged(s transport.RadioState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radio = append(o.radio, s)
}

// States returns every state change in order.
func (o *RecordingObserver) States() []link.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]link.State(nil), o.states...)
}

// Errors returns every surfaced error in order.
func (o *RecordingObserver) Errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errors...)
}

// LastError returns the most recent error, or nil.
func (o *RecordingObserver) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.errors) == 0 {
		return nil
	}
	return o.errors[len(o.errors)-1]
}

// MessageUpdates returns how many message log notifications were delivered.
func (o *RecordingObserver) MessageUpdates() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages)
}

// LastMessages returns the latest published message log.
func (o *RecordingObserver) LastMessages() []chat.ChatMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return nil
	}
	return o.messages[len(o.messages)-1]
}

// DeviceUpdates returns every published device list in order.
func (o *RecordingObserver) DeviceUpdates() [][]registry.DiscoveredPeer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]registry.DiscoveredPeer(nil), o.devices...)
}

// RadioStates returns every radio notification in order.
func (o *RecordingObserver) RadioStates() []transport.RadioState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transport.RadioState(nil), o.radio...)
}

// Reset forgets everything recorded so far.
func (o *RecordingObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states, o.errors, o.messages, o.devices, o.radio = nil, nil, nil, nil, nil
}
