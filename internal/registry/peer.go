// Package registry keeps the central role's view of nearby advertisers.
package registry

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/srg/blepeer/internal/transport"
)

// UnknownDeviceName is shown when neither the advertisement nor the platform supplies a name.
const UnknownDeviceName = "Unknown Device"

// DiscoveredPeer is the published view of one advertiser. Two peers are the
// same device when their IDs match, regardless of the other fields.
type DiscoveredPeer struct {
	ID                 string
	Name               string
	RSSI               int
	HasMatchingService bool
	VendorData         []byte
}

// NewPeer derives a peer from a discovery event. serviceUUID is the service
// the local session expects the remote to advertise.
func NewPeer(d transport.Discovery, serviceUUID string) DiscoveredPeer {
	return DiscoveredPeer{
		ID:                 d.ID,
		Name:               DisplayName(d.LocalName, d.PeripheralName),
		RSSI:               d.RSSI,
		HasMatchingService: containsUUID(d.Services, serviceUUID),
		VendorData:         d.VendorData,
	}
}

// DisplayName prefers the advertised local name, then the platform's cached
// peripheral name. Some platforms omit the local name from discovery events
// even when the advertiser set one.
func DisplayName(localName, peripheralName string) string {
	if localName != "" {
		return localName
	}
	if peripheralName != "" {
		return peripheralName
	}
	return UnknownDeviceName
}

// SameAs reports identity equality.
func (p DiscoveredPeer) SameAs(o DiscoveredPeer) bool { return p.ID == o.ID }

// SignalString renders the RSSI for display.
func (p DiscoveredPeer) SignalString() string {
	return fmt.Sprintf("%d dBm", p.RSSI)
}

// VendorDataString renders manufacturer data as colon separated hex, or "" if absent.
func (p DiscoveredPeer) VendorDataString() string {
	if len(p.VendorData) == 0 {
		return ""
	}
	parts := make([]string, len(p.VendorData))
	for i, b := range p.VendorData {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// equal compares every field; it decides whether a publication changed.
func (p DiscoveredPeer) equal(o DiscoveredPeer) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.RSSI == o.RSSI &&
		p.HasMatchingService == o.HasMatchingService &&
		bytes.Equal(p.VendorData, o.VendorData)
}

func containsUUID(list []string, want string) bool {
	if want == "" {
		return false
	}
	w := normalizeUUID(want)
	for _, u := range list {
		if normalizeUUID(u) == w {
			return true
		}
	}
	return false
}

// normalizeUUID lowercases and strips dashes so "1234-ABCD" matches "1234abcd".
func normalizeUUID(u string) string {
	return strings.ToLower(strings.ReplaceAll(u, "-", ""))
}
