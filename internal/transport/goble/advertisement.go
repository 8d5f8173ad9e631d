package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blepeer/internal/transport"
)

// advertisement is the part of ble.Advertisement a discovery needs.
type advertisement interface {
	LocalName() string
	ManufacturerData() []byte
	Services() []ble.UUID
	RSSI() int
	Addr() ble.Addr
}

// discoveryFrom converts an advertisement. go-ble has no cached peripheral
// name, so PeripheralName stays empty and display falls back to LocalName.
func discoveryFrom(a advertisement) transport.Discovery {
	d := transport.Discovery{
		LocalName: a.LocalName(),
		RSSI:      a.RSSI(),
		Services:  uuidStrings(a.Services()),
	}
	if addr := a.Addr(); addr != nil {
		d.ID = addr.String()
	}
	if md := a.ManufacturerData(); len(md) > 0 {
		d.VendorData = append([]byte(nil), md...)
	}
	return d
}
