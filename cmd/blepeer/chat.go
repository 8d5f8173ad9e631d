package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport/goble"
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat <address|name>",
	Short: "Connect to an advertising peer and chat",
	Long: `Scan until a device with the given address or advertised name shows
up, connect to it, subscribe to the chat characteristic and exchange
messages over stdin/stdout.

Names are matched case-insensitively; when several devices share a name,
the one with the strongest signal wins.`,
	Example: `  blepeer chat "BLE Peer"
  blepeer chat 5C:F3:70:12:34:56 --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Duration("timeout", 0, "How long to look for the peer (default from configuration, 0 means forever)")
}

func runChat(cmd *cobra.Command, args []string) error {
	target := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	timeout := cfg.ScanTimeout
	if f := cmd.Flags().Lookup("timeout"); f.Changed {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	t, err := goble.NewCentral(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open Bluetooth adapter: %w", err)
	}
	defer func() { _ = t.Close() }()

	out := cmd.OutOrStdout()

	var (
		s       *session.CentralSession
		once    sync.Once
		matched = make(chan registry.DiscoveredPeer, 1)
	)
	con := newConsole(out, link.Central)
	con.OnDevices = func(peers []registry.DiscoveredPeer) {
		p, ok := findPeer(peers, target)
		if !ok {
			return
		}
		once.Do(func() {
			stateColor.Fprintf(out, "* found %s (%s, %s)\n", p.Name, p.ID, p.SignalString())
			s.Connect(p.ID)
			matched <- p
		})
	}
	con.OnRadio = scanWhenReady(func() { s.StartScanning() })
	con.Start(context.Background())
	defer con.Close()

	loop := executor.NewLoop("central", logger)
	loop.Start(context.Background())
	defer loop.Flush()

	s = session.NewCentralSession(t, loop, con, cfg.SessionOptions(), logger)
	s.Start()
	defer shutdown(loop, s.Close)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return fmt.Errorf("%w: no device %q within %s", ErrPeerNotFound, target, timeout)
	case p := <-matched:
		logger.WithField("peer", p.ID).Info("Connecting to peer")
	}

	return runInput(ctx, cmd.InOrStdin(), out, controls{
		Send:       s.SendMessage,
		Start:      s.StartScanning,
		Stop:       s.StopScanning,
		Disconnect: s.Disconnect,
	})
}

// findPeer looks target up by address first, then by name. peers are
// sorted strongest first, so the first name match is the closest device.
func findPeer(peers []registry.DiscoveredPeer, target string) (registry.DiscoveredPeer, bool) {
	for _, p := range peers {
		if strings.EqualFold(p.ID, target) {
			return p, true
		}
	}
	for _, p := range peers {
		if strings.EqualFold(p.Name, target) {
			return p, true
		}
	}
	return registry.DiscoveredPeer{}, false
}
