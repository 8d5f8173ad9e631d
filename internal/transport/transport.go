// Package transport defines the wireless link capability consumed by the
// session layer.
//
// Transport methods never block on the radio: each call starts the
// operation and returns, and the outcome is delivered later as an Event to
// the registered Handler. Calls on one transport take effect in the order
// they were made. Implementations must tolerate calls for peers or handles
// that have already gone away.
package transport

// Properties of the shared characteristic.
type Properties struct {
	Read   bool
	Write  bool
	Notify bool
}

// ServiceSpec describes the single GATT service a peripheral exposes.
type ServiceSpec struct {
	UUID           string
	Characteristic string
	Properties     Properties

	// Generation is echoed in the matching EventServiceAdded so a caller
	// can tell a stale registration from the one it is waiting for.
	Generation uint64
}

// Radio is the part of the capability common to both roles.
type Radio interface {
	// RadioState returns the current radio condition.
	RadioState() RadioState

	// SetHandler registers the event sink. Passing nil detaches it.
	SetHandler(h Handler)
}

// Peripheral is the advertiser/server side of the link.
type Peripheral interface {
	Radio

	// AddService registers svc; the result arrives as EventServiceAdded.
	AddService(svc ServiceSpec)

	// RemoveAllServices deregisters every service, dropping current subscribers.
	RemoveAllServices()

	// StartAdvertising broadcasts name and service UUIDs until StopAdvertising.
	// Failures arrive as EventAdvertisingFailed.
	StartAdvertising(name string, services []string)

	StopAdvertising()

	// Notify pushes data to the subscribed peer.
	Notify(peer, characteristic string, data []byte) error
}

// Central is the scanner/client side of the link.
type Central interface {
	Radio

	// StartScan reports advertisements as EventDiscovered until StopScan.
	StartScan(allowDuplicates bool)

	StopScan()

	// Connect dials peer; the result is EventConnected or EventConnectFailed.
	Connect(peer string)

	// CancelConnection aborts a pending dial or drops an established link.
	CancelConnection(peer string)

	DiscoverServices(peer string, services []string)
	DiscoverCharacteristics(peer, service string, characteristics []string)

	// Subscribe enables notifications; the result is EventNotifySubscribed.
	Subscribe(peer, service, characteristic string)

	// Write sends data with response; the result is EventWriteAck.
	Write(peer, service, characteristic string, data []byte)
}
