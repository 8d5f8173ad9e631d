package transport

import "fmt"

// EventKind enumerates everything a transport can report to a session.
type EventKind int

const (
	EventRadioStateChanged EventKind = iota

	// Peripheral role.
	EventServiceAdded
	EventAdvertisingFailed
	EventSubscribed
	EventUnsubscribed
	EventWriteReceived

	// Central role.
	EventDiscovered
	EventConnected
	EventConnectFailed
	EventDisconnected
	EventServicesDiscovered
	EventCharacteristicsDiscovered
	EventNotifySubscribed
	EventNotifyReceived
	EventWriteAck
	EventServicesInvalidated
)

var eventNames = map[EventKind]string{
	EventRadioStateChanged:         "radio_state_changed",
	EventServiceAdded:              "service_added",
	EventAdvertisingFailed:         "advertising_failed",
	EventSubscribed:                "subscribed",
	EventUnsubscribed:              "unsubscribed",
	EventWriteReceived:             "write_received",
	EventDiscovered:                "discovered",
	EventConnected:                 "connected",
	EventConnectFailed:             "connect_failed",
	EventDisconnected:              "disconnected",
	EventServicesDiscovered:        "services_discovered",
	EventCharacteristicsDiscovered: "characteristics_discovered",
	EventNotifySubscribed:          "notify_subscribed",
	EventNotifyReceived:            "notify_received",
	EventWriteAck:                  "write_ack",
	EventServicesInvalidated:       "services_invalidated",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// AttResult is the acknowledgment a peripheral gives an inbound write.
type AttResult int

const (
	AttSuccess AttResult = iota
	AttInvalidValueLength
	AttNotFound
)

func (r AttResult) String() string {
	switch r {
	case AttSuccess:
		return "success"
	case AttInvalidValueLength:
		return "invalid_value_length"
	case AttNotFound:
		return "attribute_not_found"
	default:
		return fmt.Sprintf("att(%d)", int(r))
	}
}

// Discovery is one advertisement seen while scanning.
type Discovery struct {
	ID             string
	LocalName      string // advertised local name, may be empty
	PeripheralName string // name cached by the platform, may be empty
	RSSI           int
	Services       []string
	VendorData     []byte
}

// Event is a single transport notification. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind EventKind

	Radio           RadioState
	Peer            string
	Service         string
	Characteristic  string
	Services        []string
	Characteristics []string
	Data            []byte
	Discovery       *Discovery
	Err             error

	// Generation echoes ServiceSpec.Generation on EventServiceAdded.
	Generation uint64

	// Respond acknowledges an EventWriteReceived. It must be called exactly once.
	Respond func(AttResult)
}

// Handler consumes transport events. Transports may call it from any goroutine.
type Handler func(Event)
