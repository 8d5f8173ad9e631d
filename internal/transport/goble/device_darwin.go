//go:build darwin

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newPlatformDevice(role Role) (ble.Device, error) {
	opt := ble.OptCentralRole()
	if role == PeripheralRole {
		opt = ble.OptPeripheralRole()
	}
	dev, err := darwin.NewDevice(opt)
	if err != nil {
		return nil, err
	}
	return dev, nil
}
