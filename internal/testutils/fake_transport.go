package testutils

import (
	"sync"

	"github.com/srg/blepeer/internal/transport"
)

// Call is one recorded transport invocation.
type Call struct {
	Method string
	Args   []any
}

// fakeRadio records calls and lets tests inject events.
type fakeRadio struct {
	mu      sync.Mutex
	radio   transport.RadioState
	handler transport.Handler
	calls   []Call
}

func (f *fakeRadio) record(method string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
}

// RadioState implements transport.Radio.
func (f *fakeRadio) RadioState() transport.RadioState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.radio
}

// SetHandler implements transport.Radio.
func (f *fakeRadio) SetHandler(h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// SetRadio changes the radio state and emits EventRadioStateChanged.
func (f *fakeRadio) SetRadio(state transport.RadioState) {
	f.mu.Lock()
	f.radio = state
	f.mu.Unlock()
	f.Emit(transport.Event{Kind: transport.EventRadioStateChanged, Radio: state})
}

// Emit delivers ev to the registered handler, if any.
func (f *fakeRadio) Emit(ev transport.Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// Attached reports whether a handler is registered.
func (f *fakeRadio) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Calls returns every recorded call in order.
func (f *fakeRadio) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one method.
func (f *fakeRadio) CallsTo(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Methods returns the names of the recorded calls in order.
func (f *fakeRadio) Methods() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// ResetCalls forgets every recorded call.
func (f *fakeRadio) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// FakePeripheral is an in-memory transport.Peripheral.
type FakePeripheral struct {
	fakeRadio

	// NotifyErr is returned by Notify when set.
	NotifyErr error

	pending []transport.ServiceSpec // AddService calls not yet completed
}

var _ transport.Peripheral = (*FakePeripheral)(nil)

// NewFakePeripheral returns a fake with the given initial radio state.
func NewFakePeripheral(radio transport.RadioState) *FakePeripheral {
	return &FakePeripheral{fakeRadio: fakeRadio{radio: radio}}
}

func (f *FakePeripheral) RemoveAllServices() { f.record("RemoveAllServices") }
func (f *FakePeripheral) StopAdvertising()   { f.record("StopAdvertising") }

func (f *FakePeripheral) AddService(svc transport.ServiceSpec) {
	f.record("AddService", svc)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, svc)
}

// CompleteService finishes the oldest outstanding AddService with err,
// echoing its generation. Registrations complete in request order. It
// returns false when nothing is outstanding.
func (f *FakePeripheral) CompleteService(err error) bool {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return false
	}
	svc := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()

	f.Emit(transport.Event{
		Kind:       transport.EventServiceAdded,
		Service:    svc.UUID,
		Generation: svc.Generation,
		Err:        err,
	})
	return true
}

func (f *FakePeripheral) StartAdvertising(name string, services []string) {
	f.record("StartAdvertising", name, services)
}

func (f *FakePeripheral) Notify(peer, characteristic string, data []byte) error {
	f.record("Notify", peer, characteristic, append([]byte(nil), data...))
	return f.NotifyErr
}

// FakeCentral is an in-memory transport.Central.
type FakeCentral struct {
	fakeRadio
}

var _ transport.Central = (*FakeCentral)(nil)

// NewFakeCentral returns a fake with the given initial radio state.
func NewFakeCentral(radio transport.RadioState) *FakeCentral {
	return &FakeCentral{fakeRadio: fakeRadio{radio: radio}}
}

func (f *FakeCentral) StartScan(allowDuplicates bool) { f.record("StartScan", allowDuplicates) }
func (f *FakeCentral) StopScan()                      { f.record("StopScan") }
func (f *FakeCentral) Connect(peer string)            { f.record("Connect", peer) }
func (f *FakeCentral) CancelConnection(peer string)   { f.record("CancelConnection", peer) }

func (f *FakeCentral) DiscoverServices(peer string, services []string) {
	f.record("DiscoverServices", peer, services)
}

func (f *FakeCentral) DiscoverCharacteristics(peer, service string, characteristics []string) {
	f.record("DiscoverCharacteristics", peer, service, characteristics)
}

func (f *FakeCentral) Subscribe(peer, service, characteristic string) {
	f.record("Subscribe", peer, service, characteristic)
}

func (f *FakeCentral) Write(peer, service, characteristic string, data []byte) {
	f.record("Write", peer, service, characteristic, append([]byte(nil), data...))
}
