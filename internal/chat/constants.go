// Package chat holds the message model shared by both link roles: the chat
// entries, the bounded history they live in, and the raw UTF-8 wire format.
package chat

import "time"

// Both roles must agree on these identifiers; all traffic flows through the
// single characteristic.
const (
	ServiceUUID        = "12345678-1234-1234-1234-123456789ABC"
	CharacteristicUUID = "12345678-1234-1234-1234-123456789DEF"
)

const (
	// MaxMessageLength bounds a message to one transport write (bytes).
	MaxMessageLength = 512

	// HistoryCapacity is the number of messages kept before the oldest are evicted.
	HistoryCapacity = 100

	// MaxAdvertisementSize is the legacy advertising payload ceiling used when
	// choosing the broadcast name.
	MaxAdvertisementSize = 28

	// DefaultAdvertisedName fits next to a 128-bit service UUID; "BLE Peer Device" does not.
	DefaultAdvertisedName = "BLE Peer"

	// AutoStartDelay is applied before the first automatic advertising start.
	AutoStartDelay = 500 * time.Millisecond

	// DeviceListUpdateInterval is the discovery batch publishing cadence.
	DeviceListUpdateInterval = 500 * time.Millisecond
)
