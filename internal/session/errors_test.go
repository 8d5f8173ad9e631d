package session_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/blepeer/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	cause := errors.New("gatt busy")
	err := &session.Error{Kind: session.SetupFailed, Reason: "error adding service", Err: cause}

	assert.ErrorIs(t, err, session.ErrSetupFailed, "errors.Is MUST match by kind")
	assert.NotErrorIs(t, err, session.ErrLinkFailed)
	assert.ErrorIs(t, err, cause, "errors.Is MUST reach the cause")
	assert.Equal(t, "setup_failed: error adding service: gatt busy", err.Error())
}

func TestError_WrappedKind(t *testing.T) {
	err := fmt.Errorf("advertise: %w", &session.Error{Kind: session.RadioUnavailable, Reason: "Bluetooth is turned off"})

	assert.Equal(t, session.RadioUnavailable, session.KindOf(err))
	assert.Equal(t, session.ErrorKind(""), session.KindOf(errors.New("plain")))

	var serr *session.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Bluetooth is turned off", serr.Reason)
}

func TestError_Formatting(t *testing.T) {
	assert.Equal(t, "not_ready", session.ErrNotReady.Error())
	assert.Equal(t, "<nil>", (*session.Error)(nil).Error())
}

func TestConnectionStatus_Equal(t *testing.T) {
	connected := session.ConnectionStatus{Kind: session.StatusConnected}
	failed := session.ConnectionStatus{Kind: session.StatusError, Reason: "Connection failed"}

	assert.True(t, connected.Equal(session.ConnectionStatus{Kind: session.StatusConnected, Reason: "ignored"}))
	assert.False(t, connected.Equal(failed))
	assert.True(t, failed.Equal(session.ConnectionStatus{Kind: session.StatusError, Reason: "Connection failed"}))
	assert.False(t, failed.Equal(session.ConnectionStatus{Kind: session.StatusError, Reason: "connection failed"}),
		"error statuses MUST compare reasons literally")
	assert.Equal(t, "error: Connection failed", failed.String())
	assert.Equal(t, "connecting", session.ConnectionStatus{Kind: session.StatusConnecting}.String())
}

func TestOptions_Defaults(t *testing.T) {
	opts := session.DefaultOptions()

	assert.Equal(t, 512, opts.MaxMessageLength)
	assert.Equal(t, 100, opts.HistoryCapacity)
	assert.Equal(t, "BLE Peer", opts.AdvertisedName)
	assert.Equal(t, 28, opts.MaxAdvertisementSize)
	assert.Equal(t, "500ms", opts.StartupDelay.String())
	assert.Equal(t, "500ms", opts.BatchInterval.String())
	assert.False(t, opts.DisableAutoAdvertise)
	assert.False(t, opts.DisableAutoRestart)
}
