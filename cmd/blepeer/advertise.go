package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/blepeer/internal/executor"
	"github.com/srg/blepeer/internal/link"
	"github.com/srg/blepeer/internal/session"
	"github.com/srg/blepeer/internal/transport/goble"
)

// advertiseCmd represents the advertise command
var advertiseCmd = &cobra.Command{
	Use:   "advertise",
	Short: "Advertise the chat service and wait for a peer",
	Long: `Register the chat GATT service, advertise it under a local name and
wait for a central to subscribe. Once a peer is subscribed, lines typed on
stdin are sent to it and its messages are printed.

Advertising restarts automatically after the peer leaves.`,
	Args: cobra.NoArgs,
	RunE: runAdvertise,
}

func init() {
	advertiseCmd.Flags().String("name", "", "Advertised local name (overrides the configuration)")
}

func runAdvertise(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	t, err := goble.NewPeripheral(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to open Bluetooth adapter: %w", err)
	}
	defer func() { _ = t.Close() }()

	out := cmd.OutOrStdout()
	con := newConsole(out, link.Peripheral)
	con.Start(context.Background())
	defer con.Close()

	loop := executor.NewLoop("peripheral", logger)
	loop.Start(context.Background())
	defer loop.Flush()

	s := session.NewPeripheralSession(t, loop, con, cfg.SessionOptions(), logger)
	s.Start()
	defer shutdown(loop, s.Close)

	logger.WithField("name", cfg.Name).Info("Peripheral started")

	return runInput(ctx, cmd.InOrStdin(), out, controls{
		Send:       s.SendMessage,
		Start:      s.StartAdvertising,
		Stop:       s.StopAdvertising,
		Disconnect: s.Disconnect,
	})
}
