package session

import "fmt"

// ConnectionKind is the coarse connection status of a central session.
type ConnectionKind int

const (
	StatusDisconnected ConnectionKind = iota
	StatusConnecting
	StatusConnected
	StatusError
)

// ConnectionStatus is what a UI shows next to the connected device.
type ConnectionStatus struct {
	Kind   ConnectionKind
	Reason string // set for StatusError only
}

// Equal compares statuses. Two error statuses are equal only when their
// reasons match exactly, so a reworded transport message makes them differ.
func (s ConnectionStatus) Equal(o ConnectionStatus) bool {
	if s.Kind != o.Kind {
		return false
	}
	if s.Kind == StatusError {
		return s.Reason == o.Reason
	}
	return true
}

func (s ConnectionStatus) String() string {
	switch s.Kind {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return fmt.Sprintf("error: %s", s.Reason)
	default:
		return fmt.Sprintf("status(%d)", int(s.Kind))
	}
}
