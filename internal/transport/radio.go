package transport

import "fmt"

// RadioState is the power/authorization condition of the local radio.
type RadioState int

const (
	RadioUnknown RadioState = iota
	RadioResetting
	RadioUnsupported
	RadioUnauthorized
	RadioPoweredOff
	RadioPoweredOn
)

// Ready reports whether the radio can advertise, scan or connect.
func (s RadioState) Ready() bool { return s == RadioPoweredOn }

func (s RadioState) String() string {
	switch s {
	case RadioUnknown:
		return "unknown"
	case RadioResetting:
		return "resetting"
	case RadioUnsupported:
		return "unsupported"
	case RadioUnauthorized:
		return "unauthorized"
	case RadioPoweredOff:
		return "powered_off"
	case RadioPoweredOn:
		return "powered_on"
	default:
		return fmt.Sprintf("radio(%d)", int(s))
	}
}

// Describe returns a human-readable status suitable for end users.
func (s RadioState) Describe() string {
	switch s {
	case RadioUnknown:
		return "Bluetooth state unknown - initializing..."
	case RadioResetting:
		return "Bluetooth is resetting..."
	case RadioUnsupported:
		return "Bluetooth is not supported on this device"
	case RadioUnauthorized:
		return "Bluetooth permission denied, grant access in the system privacy settings"
	case RadioPoweredOff:
		return "Bluetooth is turned off"
	case RadioPoweredOn:
		return "Bluetooth is ready"
	default:
		return "Unknown Bluetooth state"
	}
}
