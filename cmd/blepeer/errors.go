package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport/goble"
)

// Command-level errors
var (
	// ErrPeerNotFound indicates the chat target never showed up in the scan.
	ErrPeerNotFound = errors.New("peer not found")
)

// FormatUserError turns an error into a one-line message for the terminal.
func FormatUserError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, goble.ErrBluetoothOff):
		return "Bluetooth is powered off, turn it on and try again"
	case errors.Is(err, goble.ErrNotAuthorized):
		return "this terminal is not allowed to use Bluetooth, grant access in the system settings"
	case errors.Is(err, goble.ErrNotSupported):
		return "Bluetooth LE is not supported on this platform"
	case errors.Is(err, goble.ErrNoDevice):
		return "no Bluetooth adapter found"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	}

	var serr *session.Error
	if errors.As(err, &serr) {
		return describeSessionError(serr)
	}
	return err.Error()
}

func describeSessionError(e *session.Error) string {
	switch e.Kind {
	case session.RadioUnavailable:
		return "Bluetooth unavailable: " + e.Reason
	case session.MessageTooLong:
		return "message too long, " + e.Reason
	case session.NotReady:
		return "not connected yet, wait for the link to come up"
	case session.LinkFailed:
		if e.Err != nil {
			return fmt.Sprintf("link failed: %s (%v)", e.Reason, e.Err)
		}
		return "link failed: " + e.Reason
	default:
		return e.Error()
	}
}
