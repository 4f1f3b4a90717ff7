package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/capture"
	"github.com/muurk/wccp/internal/discovery"
	"github.com/muurk/wccp/internal/export"
	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/link"
	"github.com/muurk/wccp/internal/protocol"
	"github.com/muurk/wccp/internal/relay"
	"github.com/muurk/wccp/internal/ui"
)

// logEpoch anchors record log times, which count milliseconds from an
// unknown start.
var logEpoch = time.Unix(0, 0).UTC()

// Output flags
var (
	packetFilter string
	outputFormat string
	readLog      bool
	exportDir    string
	scanTimeout  time.Duration
	scanInstance string
)

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(discoverCmd)

	decodeCmd.Flags().StringVar(&packetFilter, "filter", "", "Packet id characters to show, e.g. \"AB\" (default all)")
	decodeCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	logCmd.Flags().StringVarP(&packetFilter, "filter", "f", "", "Packet id characters to show, e.g. \"AB\" (default all)")
	logCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format (text, json)")

	exportCmd.Flags().BoolVar(&readLog, "log", false, "Input is a record log rather than a framed capture")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default export.directory from the config file)")
	exportCmd.Flags().StringVar(&packetFilter, "filter", "", "Packet id characters to export (default all)")

	sampleCmd.Flags().BoolVar(&readLog, "log", false, "Write a record log rather than a framed capture")

	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to wait for relays to answer")
	discoverCmd.Flags().StringVar(&scanInstance, "instance", "", "Look up a single relay by instance name")
}

// decodeCmd prints the packets of a framed capture
var decodeCmd = &cobra.Command{
	Use:   "decode [capture]",
	Short: "Decode a framed capture file",
	Long: `Decode a framed capture: the raw byte stream of a serial link, as saved
with --capture or the monitor's "s" key.

Frames with a bad checksum or an undecodable packet are dropped and the
stream is resynchronized at the next valid frame. A summary of the framer
counters follows the packets. With no file, or "-", stdin is read.`,
	Example: `  # Decode a capture
  wccp decode data.bin

  # Only packets 'A' and 'B', as JSON lines
  wccp decode data.bin --filter AB --format json

  # Decode from a pipe
  cat /dev/ttyUSB0 | wccp decode`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func runDecode(cmd *cobra.Command, args []string) error {
	out, err := newPacketWriter(cmd.OutOrStdout(), outputFormat)
	if err != nil {
		return err
	}

	var src *link.Source
	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	if path == "-" {
		src = link.NewSource("stdin", cmd.InOrStdin(), cfg.Source.ChunkSize)
	} else {
		src, err = link.Open(link.Options{File: path, ChunkSize: cfg.Source.ChunkSize})
		if err != nil {
			return err
		}
	}
	defer src.Close()

	pr := ui.NewPrinter(cmd.OutOrStdout())
	if out.text() {
		pr.PrintHeader("Decode", "wccp decode "+path, ui.Detail{Key: "Source", Value: src.Name()})
	}

	packets, errc, err := pump(cmd.Context(), src, logPackets(src.Name(), packetFilter))
	if err != nil {
		return err
	}

	shown := 0
	for r := range packets {
		if !r.Packet.MatchesFilter(packetFilter) {
			continue
		}
		if err := out.write(r.Packet, time.Time{}); err != nil {
			return err
		}
		shown++
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if out.text() {
		printFramerSummary(pr, src.Framer().Stats(), shown)
	}
	return nil
}

func printFramerSummary(pr *ui.Printer, stats protocol.FramerStats, shown int) {
	details := []ui.Detail{
		{Key: "Bytes", Value: strconv.FormatUint(stats.BytesIn, 10)},
		{Key: "Frames", Value: strconv.FormatUint(stats.Frames, 10)},
		{Key: "Shown", Value: strconv.Itoa(shown)},
		{Key: "Checksum errors", Value: strconv.FormatUint(stats.ChecksumErrors, 10)},
		{Key: "Decode errors", Value: strconv.FormatUint(stats.DecodeErrors, 10)},
		{Key: "Resyncs", Value: strconv.FormatUint(stats.Resyncs, 10)},
		{Key: "Discarded bytes", Value: strconv.FormatUint(stats.Discarded, 10)},
	}
	if stats.ChecksumErrors+stats.DecodeErrors+stats.Resyncs > 0 {
		pr.PrintWarning("Decoded with errors", details...)
		return
	}
	pr.PrintSuccess("Decode complete", details...)
}

// logCmd prints the records of a packet log
var logCmd = &cobra.Command{
	Use:   "log <path>",
	Short: "Read a record log",
	Long: `Print the packets of a record log. Each record is a 4-byte little-endian
millisecond timestamp, a length byte and the encoded packet.

Reading stops at the first malformed record header. Records whose packet
does not decode are skipped and counted.`,
	Example: `  # Show every record
  wccp log flight.log

  # Only packets 'T'
  wccp log flight.log -f T`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	out, err := newPacketWriter(cmd.OutOrStdout(), outputFormat)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	pr := ui.NewPrinter(cmd.OutOrStdout())
	if out.text() {
		params := []ui.Detail{{Key: "File", Value: args[0]}}
		if packetFilter != "" {
			params = append(params, ui.Detail{Key: "Filter", Value: packetFilter})
		}
		pr.PrintHeader("Record Log", "wccp log "+args[0], params...)
	}

	reader := capture.NewReader(f)
	shown := 0
	var readErr error
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if !rec.Packet.MatchesFilter(packetFilter) {
			continue
		}
		var at time.Time
		if out.text() {
			pr.Println(ui.TimeStyle.Render(fmt.Sprintf("%d ms:", rec.Millis)))
		} else {
			at = logEpoch.Add(rec.Time())
		}
		if err := out.write(rec.Packet, at); err != nil {
			return err
		}
		shown++
	}

	if !out.text() {
		return readErr
	}

	details := []ui.Detail{
		{Key: "Shown", Value: strconv.Itoa(shown)},
		{Key: "Skipped", Value: strconv.Itoa(reader.Skipped())},
		{Key: "Bytes read", Value: strconv.FormatInt(reader.Offset(), 10)},
	}
	if readErr != nil {
		pr.PrintError("Log ended with a format error", readErr,
			fmt.Sprintf("Last good record ends at byte %d", reader.Offset()),
			"The file may be truncated or not a record log; try 'wccp decode' for framed captures")
		return nil
	}
	pr.PrintSuccess("Log complete", details...)
	return nil
}

// exportCmd converts a capture or log to CSV
var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export packets to CSV",
	Long: `Export every packet series of a capture to CSV, one file per unit,
component and packet id. Columns are the packet header followed by every
entry, struct members and nested packet entries as dotted paths.

Framed captures carry no timestamps, so packets are timed as they are
read. Record log times are the log's millisecond offsets from the Unix
epoch.`,
	Example: `  # Export a framed capture to ./csv
  wccp export data.bin --dir csv

  # Export a record log
  wccp export flight.log --log`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	h := history.New(0)
	add := func(p *protocol.Packet, at time.Time) {
		if p.MatchesFilter(packetFilter) {
			h.Add(p, at)
		}
	}

	if readLog {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open log: %w", err)
		}
		defer f.Close()

		err = capture.ReadAll(f, "", func(rec capture.Record) error {
			add(rec.Packet, logEpoch.Add(rec.Time()))
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		src, err := link.Open(link.Options{File: args[0], ChunkSize: cfg.Source.ChunkSize})
		if err != nil {
			return err
		}
		defer src.Close()

		packets, errc, err := pump(cmd.Context(), src, nil)
		if err != nil {
			return err
		}
		for r := range packets {
			add(r.Packet, r.At)
		}
		if err := <-errc; err != nil {
			return err
		}
	}

	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Directory
	}
	paths, err := export.New(dir).All(h)
	if err != nil {
		return err
	}

	pr := ui.NewPrinter(cmd.OutOrStdout())
	if len(paths) == 0 {
		pr.PrintWarning("Nothing to export", ui.Detail{Key: "Input", Value: args[0]})
		return nil
	}
	details := []ui.Detail{
		{Key: "Packets", Value: strconv.Itoa(h.Len())},
		{Key: "Directory", Value: dir},
	}
	for _, p := range paths {
		details = append(details, ui.Detail{Key: "File", Value: p})
	}
	pr.PrintSuccess(fmt.Sprintf("Exported %d series", len(paths)), details...)
	return nil
}

// sampleCmd writes the reference sample
var sampleCmd = &cobra.Command{
	Use:   "sample [path]",
	Short: "Write the reference sample capture",
	Long: `Write the four reference packets (local and remote command and
telemetry packets carrying one entry of every kind) as a framed capture,
or as a record log with --log. The default path is sample.bin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSample,
}

func runSample(cmd *cobra.Command, args []string) error {
	path := "sample.bin"
	if len(args) > 0 {
		path = args[0]
	}

	data, err := sampleData(readLog)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sample: %w", err)
	}

	format := "framed capture"
	if readLog {
		format = "record log"
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Sample written",
		ui.Detail{Key: "Path", Value: path},
		ui.Detail{Key: "Format", Value: format},
		ui.Detail{Key: "Packets", Value: strconv.Itoa(len(protocol.SamplePackets()))},
		ui.Detail{Key: "Bytes", Value: strconv.Itoa(len(data))},
	)
	return nil
}

// sampleData encodes the reference packets as frames, or as log records
// one second apart.
func sampleData(asLog bool) ([]byte, error) {
	var buf bytes.Buffer
	w := capture.NewWriter(&buf)
	for i, p := range protocol.SamplePackets() {
		if asLog {
			if err := w.Write(uint32(1000*(i+1)), p); err != nil {
				return nil, err
			}
			continue
		}
		frame, err := protocol.EncodeFrame(p)
		if err != nil {
			return nil, err
		}
		buf.Write(frame)
	}
	return buf.Bytes(), nil
}

// discoverCmd browses for relays
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find wccp relays on the local network",
	Long: `Browse for relays advertising the ` + discovery.ServiceType + ` mDNS service and
print their websocket and metrics endpoints.`,
	Example: `  # Scan for 5 seconds (default)
  wccp discover

  # Look up one relay
  wccp discover --instance wccp-groundstation`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout

	pr := ui.NewPrinter(cmd.OutOrStdout())

	var relays []*discovery.Relay
	if scanInstance != "" {
		r, err := scanner.Find(cmd.Context(), scanInstance)
		if err != nil {
			return err
		}
		relays = append(relays, r)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Scanning for relays (timeout: %s)...\n\n", scanTimeout)
		found, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		relays = found
	}

	if len(relays) == 0 {
		pr.PrintError("No relays found", nil,
			"Check the relay was started with --advertise",
			"Relays must be on the same network segment",
			"Firewalls must allow mDNS (UDP port 5353)",
			"Try a longer --timeout")
		return nil
	}

	for _, r := range relays {
		details := []ui.Detail{
			{Key: "Address", Value: r.Addr()},
			{Key: "Host", Value: r.Hostname},
			{Key: "Source", Value: r.Source},
			{Key: "Version", Value: r.Version},
			{Key: "WebSocket", Value: r.WebSocketURL()},
			{Key: "Metrics", Value: r.MetricsURL()},
		}
		pr.PrintSuccess(r.Instance, details...)
	}
	return nil
}

// packetWriter prints packets as styled text or JSON lines.
type packetWriter struct {
	pr  *ui.Printer
	enc *json.Encoder
}

func newPacketWriter(w io.Writer, format string) (*packetWriter, error) {
	switch format {
	case "", "text":
		return &packetWriter{pr: ui.NewPrinter(w)}, nil
	case "json":
		return &packetWriter{enc: json.NewEncoder(w)}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

func (w *packetWriter) text() bool { return w.enc == nil }

func (w *packetWriter) write(p *protocol.Packet, at time.Time) error {
	if w.text() {
		w.pr.PrintPacket(at, p)
		return nil
	}
	msg, err := relay.NewPacketMessage(p, at)
	if err != nil {
		return err
	}
	return w.enc.Encode(msg)
}
