//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"
)

func newPlatformDevice(Role) (ble.Device, error) {
	return nil, fmt.Errorf("%w: unsupported platform %s", ErrNotSupported, runtime.GOOS)
}
