package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/export"
	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/monitor"
)

// Monitor flags
var (
	monitorFilter string
	monitorRaw    string
	monitorQuit   bool
)

func init() {
	rootCmd.AddCommand(monitorCmd)

	addSourceFlags(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorFilter, "filter", "", "Packet id characters to show, e.g. \"AB\" (default monitor.filter)")
	monitorCmd.Flags().StringVar(&monitorRaw, "raw", monitor.DefaultRawPath, "File written by the \"s\" key (recent input only, use --capture for all of it)")
	monitorCmd.Flags().BoolVar(&monitorQuit, "quit", false, "Exit when the source ends")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch live packets",
	Long: `Show every packet series read from a serial device or capture file in an
interactive dashboard: a tree of units, components and packet ids on the
left and the selected packet's contents on the right.

Keys:
  h/l   previous/next series      k/j   older/newer packet
  K     oldest packet             J     latest packet (follow)
  s     save raw input            e/E   export series/all to CSV
  C     clear all packets         f     edit the id filter
  ?     more help                 q     quit`,
	Example: `  # Watch a serial device
  wccp monitor -p /dev/ttyUSB0

  # Replay a capture, keeping only packets 'A' and 'T'
  wccp monitor -f data.bin --filter AT

  # Watch and record every packet to a log
  wccp monitor -p auto --record flight.log`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	// The monitor stops on its own; the source stops with it.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	filter := cfg.Monitor.Filter
	if monitorFilter != "" {
		filter = monitorFilter
	}

	packets, errc, err := pump(ctx, src, logPackets(src.Name(), filter))
	if err != nil {
		return err
	}

	status := "opened"
	if sourceOptions().Port != "" {
		status = "connected"
	}

	err = monitor.Run(ctx, monitor.Options{
		Source:       src.Name(),
		Status:       status,
		ClosedStatus: "disconnected",
		QuitWhenDone: monitorQuit,
		Packets:      packets,
		History:      history.New(cfg.Monitor.HistoryLimit),
		Raw:          src,
		RawPath:      monitorRaw,
		Exporter:     export.New(cfg.Export.Directory),
		Filter:       filter,
		Refresh:      cfg.RefreshInterval(),
		Highlight:    cfg.HighlightDuration(),
		Labels:       cfg,
	})
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}

	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
