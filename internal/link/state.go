// Package link implements the connection lifecycle shared by the peripheral
// and central roles.
//
// Both roles walk the same finite set of states:
//
//	Idle -> Preparing -> Active -> Linking -> Connected -> Disconnecting -> Idle
//
// The peripheral passes through Preparing while its GATT service is being
// registered; the central goes straight from Idle to Active. Idle is always
// re-enterable and there is no terminal state, the machine is meant to cycle
// for the lifetime of the process.
package link

import "fmt"

// State is one of the link lifecycle states.
type State int

const (
	Idle State = iota
	Preparing
	Active
	Linking
	Connected
	Disconnecting
)

var stateNames = [...]string{
	Idle:          "idle",
	Preparing:     "preparing",
	Active:        "active",
	Linking:       "linking",
	Connected:     "connected",
	Disconnecting: "disconnecting",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Label returns the role-specific name of the state. Active and Linking
// have distinct meanings per role (advertising vs scanning, awaiting a
// subscriber vs connecting).
func (s State) Label(r Role) string {
	switch s {
	case Active:
		if r == Peripheral {
			return "advertising"
		}
		return "scanning"
	case Linking:
		if r == Peripheral {
			return "awaiting subscription"
		}
		return "connecting"
	default:
		return s.String()
	}
}

// Role selects which side of the link a machine drives.
type Role int

const (
	Peripheral Role = iota
	Central
)

func (r Role) String() string {
	switch r {
	case Peripheral:
		return "peripheral"
	case Central:
		return "central"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Trigger is an input to the state machine.
type Trigger int

const (
	Start Trigger = iota
	Registered
	SetupFailed
	PeerFound
	Established
	Failed
	PeerLost
	Cleared
	Stop
)

var triggerNames = [...]string{
	Start:       "start",
	Registered:  "registered",
	SetupFailed: "setup_failed",
	PeerFound:   "peer_found",
	Established: "established",
	Failed:      "failed",
	PeerLost:    "peer_lost",
	Cleared:     "cleared",
	Stop:        "stop",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return fmt.Sprintf("trigger(%d)", int(t))
	}
	return triggerNames[t]
}
