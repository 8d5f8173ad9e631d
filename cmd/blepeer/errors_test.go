package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport/goble"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"bluetooth off", fmt.Errorf("open: %w", goble.ErrBluetoothOff), "Bluetooth is powered off, turn it on and try again"},
		{"not supported", goble.ErrNotSupported, "Bluetooth LE is not supported on this platform"},
		{"timeout", context.DeadlineExceeded, "operation timed out"},
		{"radio unavailable", &session.Error{Kind: session.RadioUnavailable, Reason: "Bluetooth is powered off"}, "Bluetooth unavailable: Bluetooth is powered off"},
		{"link failed with cause", &session.Error{Kind: session.LinkFailed, Reason: "subscribe failed", Err: errors.New("att 0x05")}, "link failed: subscribe failed (att 0x05)"},
		{"other kind", &session.Error{Kind: session.InvalidState, Reason: "disconnect first before scanning"}, "invalid_state: disconnect first before scanning"},
		{"peer not found", fmt.Errorf("%w: no device %q", ErrPeerNotFound, "Desk"), `peer not found: no device "Desk"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatUserError_SessionWrapsTransport(t *testing.T) {
	err := &session.Error{Kind: session.RadioUnavailable, Err: goble.ErrNotAuthorized}
	assert.Contains(t, FormatUserError(err), "not allowed to use Bluetooth",
		"transport causes MUST win over the session wrapper")
}
