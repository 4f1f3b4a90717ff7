package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/metrics"
	"github.com/muurk/wccp/internal/relay"
)

// Relay flags
var (
	relayListen    string
	relayAdvertise bool
	relayInstance  string
)

func init() {
	rootCmd.AddCommand(relayCmd)

	addSourceFlags(relayCmd)
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "Listen address (default relay.listen)")
	relayCmd.Flags().BoolVar(&relayAdvertise, "advertise", false, "Announce the relay over mDNS")
	relayCmd.Flags().StringVar(&relayInstance, "instance", "", "mDNS instance name (default wccp-<hostname>)")
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Stream packets to websocket clients",
	Long: `Read packets from a serial device or capture file and stream them as JSON
to websocket clients on /ws. Prometheus metrics are served on /metrics and
a status document on /healthz.

When the source is a serial device, clients may send packets back through
the relay. With --advertise the relay registers an mDNS service that
'wccp discover' finds.`,
	Example: `  # Relay a serial device on the default address
  wccp relay -p /dev/ttyUSB0

  # Replay a capture on port 9000 and advertise it
  wccp relay -f data.bin --listen :9000 --advertise`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func runRelay(cmd *cobra.Command, args []string) error {
	src, err := openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	conf := relay.Config{
		Listen:    cfg.Relay.Listen,
		Advertise: cfg.Relay.Advertise || relayAdvertise,
		Instance:  cfg.Relay.Instance,
		Source:    src.Name(),
	}
	if relayListen != "" {
		conf.Listen = relayListen
	}
	if relayInstance != "" {
		conf.Instance = relayInstance
	}

	m := metrics.New()
	m.WatchFramer(src.Name(), src.Framer().Stats)

	var sender relay.Sender
	if src.Writable() {
		sender = src
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	packets, errc, err := pump(ctx, src, logPackets(src.Name(), ""))
	if err != nil {
		return err
	}

	if err := relay.New(conf, m, sender).Run(ctx, packets); err != nil {
		return err
	}

	cancel()
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
