// Package goble implements the transport capability on top of go-ble.
//
// Each role gets its own ble.Device. Blocking go-ble calls run on a
// per-transport executor.Loop so that they keep their issue order (a
// service removal must land before the next registration, two writes must
// not overtake each other), while scan, dial and advertise run on their own
// cancellable goroutines. Every outcome is reported as a transport.Event.
package goble

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepeer/internal/transport"
)

var (
	ErrNoDevice       = errors.New("no bluetooth device")
	ErrNoSubscriber   = errors.New("peer is not subscribed")
	ErrUnknownPeer    = errors.New("peer is not connected")
	ErrUnknownHandle  = errors.New("service or characteristic not discovered")
	ErrBluetoothOff   = errors.New("bluetooth is turned off")
	ErrNotAuthorized  = errors.New("bluetooth access not authorized")
	ErrNotSupported   = errors.New("bluetooth low energy not supported")
	ErrRadioResetting = errors.New("bluetooth is resetting")
)

// Role selects how the platform device is opened.
type Role int

const (
	PeripheralRole Role = iota
	CentralRole
)

// DeviceFactory opens the platform device for a role (can be overridden in tests).
var DeviceFactory = func(role Role) (ble.Device, error) {
	return newPlatformDevice(role)
}

// haveState matches the darwin manager state in messages such as
// "central manager has invalid state: have=4 want=5: is Bluetooth turned on?".
var haveState = regexp.MustCompile(`have=(\d+)`)

// classifyRadioError reports the radio state implied by a go-ble error.
func classifyRadioError(err error) (transport.RadioState, bool) {
	if err == nil {
		return transport.RadioUnknown, false
	}

	msg := strings.ToLower(err.Error())
	if m := haveState.FindStringSubmatch(msg); m != nil {
		// CBManagerState values line up with transport.RadioState.
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n >= 0 && n <= int(transport.RadioPoweredOn) {
			return transport.RadioState(n), true
		}
	}

	switch {
	case strings.Contains(msg, "bluetooth is turned off"), strings.Contains(msg, "powered off"):
		return transport.RadioPoweredOff, true
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "operation not permitted"):
		return transport.RadioUnauthorized, true
	case strings.Contains(msg, "unsupported"), strings.Contains(msg, "no such device"):
		return transport.RadioUnsupported, true
	case strings.Contains(msg, "resetting"):
		return transport.RadioResetting, true
	default:
		return transport.RadioUnknown, false
	}
}

// NormalizeError maps known go-ble error strings onto the package sentinels.
// The original error stays in the chain.
func NormalizeError(err error) error {
	state, ok := classifyRadioError(err)
	if !ok {
		return err
	}
	switch state {
	case transport.RadioPoweredOff:
		return fmt.Errorf("%w: %v", ErrBluetoothOff, err)
	case transport.RadioUnauthorized:
		return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	case transport.RadioUnsupported:
		return fmt.Errorf("%w: %v", ErrNotSupported, err)
	case transport.RadioResetting:
		return fmt.Errorf("%w: %v", ErrRadioResetting, err)
	default:
		return err
	}
}

// radio is the part shared by both roles: the radio state and the event sink.
type radio struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	state   transport.RadioState
	handler transport.Handler
}

// RadioState implements transport.Radio.
func (r *radio) RadioState() transport.RadioState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetHandler implements transport.Radio.
func (r *radio) SetHandler(h transport.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *radio) emit(ev transport.Event) bool {
	r.mu.RLock()
	h := r.handler
	r.mu.RUnlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

// observe updates the radio state from an operation error and reports
// whether the error was radio related.
func (r *radio) observe(err error) bool {
	state, ok := classifyRadioError(err)
	if !ok {
		return false
	}
	r.setState(state)
	return true
}

func (r *radio) setState(state transport.RadioState) {
	r.mu.Lock()
	changed := r.state != state
	r.state = state
	r.mu.Unlock()

	if changed {
		r.logger.WithField("radio", state).Info("Radio state changed")
		r.emit(transport.Event{Kind: transport.EventRadioStateChanged, Radio: state})
	}
}

// initialState derives the radio state from the device open result.
func initialState(err error) (transport.RadioState, error) {
	if err == nil {
		return transport.RadioPoweredOn, nil
	}
	if state, ok := classifyRadioError(err); ok {
		return state, nil
	}
	return transport.RadioUnknown, err
}

func parseUUIDs(ids []string) ([]ble.UUID, error) {
	out := make([]ble.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := ble.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", id, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func uuidStrings(ids []ble.UUID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.String()
	}
	return out
}

func sameUUID(a ble.UUID, b string) bool {
	u, err := ble.Parse(b)
	return err == nil && a.Equal(u)
}
