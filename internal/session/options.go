package session

import (
	"time"

	"github.com/mcuadros/go-defaults"
)

// Options tunes a session. Zero fields are filled from the default tags,
// so no numeric option can be set to 0 and an empty string never clears a
// name or UUID.
type Options struct {
	ServiceUUID        string `default:"12345678-1234-1234-1234-123456789ABC"`
	CharacteristicUUID string `default:"12345678-1234-1234-1234-123456789DEF"`

	// MaxMessageLength bounds one message in bytes.
	MaxMessageLength int `default:"512"`
	HistoryCapacity  int `default:"100"`

	// Peripheral role.
	AdvertisedName       string `default:"BLE Peer"`
	MaxAdvertisementSize int    `default:"28"`
	// StartupDelay postpones the first automatic start. Zero selects the
	// default; use DisableAutoAdvertise to start by hand instead.
	StartupDelay         time.Duration `default:"500ms"`
	DisableAutoAdvertise bool

	// Central role.

	// BatchInterval is the device list publish period. Zero selects the
	// default.
	BatchInterval time.Duration `default:"500ms"`

	// DisableAutoRestart keeps the session Idle after a link teardown
	// instead of advertising or scanning again.
	DisableAutoRestart bool
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// withDefaults returns a copy of o with zero fields defaulted.
func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	defaults.SetDefaults(&out)
	return out
}
