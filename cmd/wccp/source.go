package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wccp/internal/capture"
	"github.com/muurk/wccp/internal/link"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
)

// Source flags, shared by the commands that read live packets
var (
	sourcePort    string
	sourceBaud    int
	sourceFile    string
	sourceCapture string
	recordPath    string
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sourcePort, "port", "p", "", `Serial device path, or "auto" for the last detected device`)
	cmd.Flags().IntVarP(&sourceBaud, "baud", "b", 0, "Serial line speed (default from config, 115200)")
	cmd.Flags().StringVarP(&sourceFile, "file", "f", "", "Framed capture file to read instead of a port")
	cmd.Flags().StringVar(&sourceCapture, "capture", "", "Append every raw byte read to this file")
	cmd.Flags().StringVar(&recordPath, "record", "", "Append every received packet to this record log")
}

// sourceOptions merges the source flags over the config file. A flag
// naming a port or file replaces both config settings.
func sourceOptions() link.Options {
	opts := link.Options{
		Port:      cfg.Source.Port,
		Baud:      cfg.Source.Baud,
		File:      cfg.Source.File,
		Capture:   cfg.Source.Capture,
		ChunkSize: cfg.Source.ChunkSize,
	}
	if sourcePort != "" {
		opts.Port, opts.File = sourcePort, ""
	}
	if sourceFile != "" {
		opts.Port, opts.File = "", sourceFile
	}
	if sourceBaud > 0 {
		opts.Baud = sourceBaud
	}
	if sourceCapture != "" {
		opts.Capture = sourceCapture
	}
	return opts
}

func openSource() (*link.Source, error) {
	opts := sourceOptions()
	if opts.Port == "" && opts.File == "" {
		return nil, fmt.Errorf("no packet source: use --port or --file, or set source.port in the config file")
	}
	return link.Open(opts)
}

// pump runs src until it ends or ctx is done. Every packet is passed to h,
// written to the record log when --record is set, and forwarded on the
// returned channel, which is closed once the source stops. The result of
// the source is sent on the error channel.
func pump(ctx context.Context, src *link.Source, h protocol.Handler) (<-chan link.Received, <-chan error, error) {
	var (
		recorder *capture.Writer
		recFile  *os.File
	)
	if recordPath != "" {
		f, err := os.OpenFile(recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open record log: %w", err)
		}
		recFile, recorder = f, capture.NewWriter(f)
	}

	in := make(chan link.Received, 64)
	out := make(chan link.Received, 64)
	errc := make(chan error, 1)

	go func() {
		errc <- src.Run(ctx, in)
		close(in)
	}()

	go func() {
		defer close(out)
		if recFile != nil {
			defer recFile.Close()
		}

		for r := range in {
			if h != nil {
				h.HandlePacket(r.Packet)
			}
			if recorder != nil {
				if err := recorder.WriteAt(r.At, r.Packet); err != nil {
					logging.Warn("Record log write failed", zap.Error(err))
				}
			}
			select {
			case out <- r:
			case <-ctx.Done():
			}
		}
	}()

	return out, errc, nil
}

// logPackets logs packets from a source. With a filter, only packets whose
// id is in filter are logged.
func logPackets(source, filter string) protocol.Handler {
	log := protocol.HandlerFunc(func(p *protocol.Packet) {
		protocol.LogPacket(source, p)
	})
	if filter == "" {
		return log
	}

	mux := protocol.NewMux()
	for i := 0; i < len(filter); i++ {
		mux.Handle(protocol.Command, filter[i], log)
		mux.Handle(protocol.Telemetry, filter[i], log)
	}
	return mux
}
