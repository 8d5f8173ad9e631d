package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/registry"
	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport/goble"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE devices",
	Long: `Scan for Bluetooth Low Energy advertisers and print them strongest
signal first. The table is redrawn whenever the device list changes.

The CHAT column marks devices advertising the chat service.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationP("duration", "d", 0, "Scan duration (default from configuration, 0 in the file means until Ctrl+C)")
	scanCmd.Flags().Bool("matching", false, "Only show devices advertising the chat service")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	duration := cfg.ScanTimeout
	if f := cmd.Flags().Lookup("duration"); f.Changed {
		duration, _ = cmd.Flags().GetDuration("duration")
	}
	matching, _ := cmd.Flags().GetBool("matching")

	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	t, err := goble.NewCentral(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open Bluetooth adapter: %w", err)
	}
	defer func() { _ = t.Close() }()

	out := cmd.OutOrStdout()
	redraw := isTerminal(os.Stdout)

	var s *session.CentralSession
	con := newConsole(out, link.Central)
	con.ShowMessages = false
	con.OnDevices = func(peers []registry.DiscoveredPeer) {
		if redraw {
			clearScreen(out)
		}
		_ = printDeviceTable(out, filterPeers(peers, matching))
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

	wait := ctx
	if duration > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}
	<-wait.Done()

	// Stopping flushes the registry one last time.
	s.StopScanning()
	var devices []registry.DiscoveredPeer
	syncCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := loop.Call(syncCtx, func() { devices = s.Devices() }); err == nil && len(filterPeers(devices, matching)) == 0 {
		fmt.Fprintln(out, "No devices discovered")
	}
	return nil
}

func filterPeers(peers []registry.DiscoveredPeer, matchingOnly bool) []registry.DiscoveredPeer {
	if !matchingOnly {
		return peers
	}
	out := make([]registry.DiscoveredPeer, 0, len(peers))
	for _, p := range peers {
		if p.HasMatchingService {
			out = append(out, p)
		}
	}
	return out
}

func printDeviceTable(out io.Writer, peers []registry.DiscoveredPeer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tCHAT\tVENDOR DATA")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, p := range peers {
		name := p.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		chat := ""
		if p.HasMatchingService {
			chat = "yes"
		}
		vendor := p.VendorDataString()
		if len(vendor) > 30 {
			vendor = vendor[:27] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, p.ID, p.SignalString(), chat, vendor)
	}
	fmt.Fprintf(w, "\n%d device(s), %s\n", len(peers), time.Now().Format(time.TimeOnly))
	return w.Flush()
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
