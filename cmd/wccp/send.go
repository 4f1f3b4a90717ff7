package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wccp/internal/link"
	"github.com/muurk/wccp/internal/protocol"
	"github.com/muurk/wccp/internal/ui"
)

// Send flags
var (
	sendID        string
	sendComponent string
	sendTelemetry bool
	sendOrigin    string
	sendDest      string
	sendSeq       uint16
	sendPort      string
	sendBaud      int
	sendOut       string
	sendHex       bool
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendID, "id", "", "Packet id: one character or a number (required)")
	sendCmd.Flags().StringVarP(&sendComponent, "component", "c", "0", "Component address")
	sendCmd.Flags().BoolVar(&sendTelemetry, "telemetry", false, "Build a telemetry packet instead of a command")
	sendCmd.Flags().StringVar(&sendOrigin, "origin", "0", "Originating unit; non-zero makes the packet remote")
	sendCmd.Flags().StringVar(&sendDest, "dest", "0", "Destination unit of a remote packet")
	sendCmd.Flags().Uint16Var(&sendSeq, "seq", 0, "Sequence number of a remote packet (default next in sequence)")
	sendCmd.Flags().StringVarP(&sendPort, "port", "p", "", `Serial device to write to, or "auto"`)
	sendCmd.Flags().IntVarP(&sendBaud, "baud", "b", 0, "Serial line speed (default from config, 115200)")
	sendCmd.Flags().StringVarP(&sendOut, "out", "o", "", "Append the frame to this file instead")
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "Print the frame as hex")

	_ = sendCmd.MarkFlagRequired("id")
}

var sendCmd = &cobra.Command{
	Use:   "send [entry...]",
	Short: "Build and send a packet",
	Long: `Build a packet from entry arguments and write it as one frame to a serial
port, a file, or stdout.

Each entry is NAME=TYPE:VALUE, NAME=VALUE or a bare NAME for a null entry.
Names are two characters. Types:

  null            no value
  bool            true or false
  int, uint       decimal or 0x hex integers
  f16, f32, f64   floating point of that width
  str             text
  hex             raw bytes as hex digits

Without a type the value is read as an integer, then a float, then text.`,
	Example: `  # Local command 'B' to component 0x11
  wccp send --id B -c 0x11 On=bool:true Sp=f32:2.5 -p /dev/ttyUSB0

  # Remote telemetry from unit 0x22 to 0x33, printed as hex
  wccp send --id T --telemetry --origin 0x22 --dest 0x33 Tp=-40 Nm=probe --hex

  # Append a frame to a capture file
  wccp send --id A Rw=hex:00ff -o frames.bin`,
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	p, err := buildPacket(args)
	if err != nil {
		return err
	}

	frame, err := protocol.EncodeFrame(p)
	if err != nil {
		return err
	}

	pr := ui.NewPrinter(cmd.OutOrStdout())

	switch {
	case sendPort != "":
		baud := cfg.Source.Baud
		if sendBaud > 0 {
			baud = sendBaud
		}
		src, err := link.Open(link.Options{Port: sendPort, Baud: baud})
		if err != nil {
			return err
		}
		defer src.Close()
		if err := src.Send(p); err != nil {
			return err
		}
		pr.PrintPacket(time.Time{}, p)
		pr.PrintSuccess("Packet sent",
			ui.Detail{Key: "Port", Value: src.Name()},
			ui.Detail{Key: "Frame", Value: strconv.Itoa(len(frame)) + " bytes"},
		)

	case sendOut != "":
		f, err := os.OpenFile(sendOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open output: %w", err)
		}
		defer f.Close()
		if _, err := f.Write(frame); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
		pr.PrintPacket(time.Time{}, p)
		pr.PrintSuccess("Frame written",
			ui.Detail{Key: "File", Value: sendOut},
			ui.Detail{Key: "Frame", Value: strconv.Itoa(len(frame)) + " bytes"},
		)

	case sendHex:
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(frame))

	default:
		_, err := cmd.OutOrStdout().Write(frame)
		return err
	}
	return nil
}

// buildPacket assembles the packet described by the send flags and the
// entry arguments.
func buildPacket(args []string) (*protocol.Packet, error) {
	id, err := parsePacketID(sendID)
	if err != nil {
		return nil, err
	}
	component, err := parseAddress("component", sendComponent)
	if err != nil {
		return nil, err
	}
	origin, err := parseAddress("origin", sendOrigin)
	if err != nil {
		return nil, err
	}
	dest, err := parseAddress("dest", sendDest)
	if err != nil {
		return nil, err
	}

	entries := make([]protocol.Entry, 0, len(args))
	for _, arg := range args {
		e, err := parseEntry(arg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	seq := sendSeq
	if seq == 0 && origin != protocol.LocalUnit {
		seq = protocol.NextSequence()
	}

	opts := []protocol.PacketOption{
		protocol.Remote(origin, dest, seq),
		protocol.WithEntries(entries...),
	}
	var p *protocol.Packet
	if sendTelemetry {
		p = protocol.NewTelemetry(id, component, opts...)
	} else {
		p = protocol.NewCommand(id, component, opts...)
	}
	if _, err := p.Size(); err != nil {
		return nil, err
	}
	return p, nil
}

// parsePacketID accepts a single character or a number up to 127.
func parsePacketID(s string) (uint8, error) {
	if len(s) == 1 && (s[0] < '0' || s[0] > '9') {
		return s[0] & protocol.MaxPacketID, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v > protocol.MaxPacketID {
		return 0, fmt.Errorf("invalid packet id %q: want a character or 0-%d", s, protocol.MaxPacketID)
	}
	return uint8(v), nil
}

func parseAddress(what, s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: want 0-255", what, s)
	}
	return uint8(v), nil
}

// parseEntry parses NAME, NAME=VALUE or NAME=TYPE:VALUE.
func parseEntry(arg string) (protocol.Entry, error) {
	name, rest, hasValue := strings.Cut(arg, "=")
	if len(name) != 2 {
		return protocol.Entry{}, fmt.Errorf("entry %q: name must be two characters", arg)
	}
	if !hasValue {
		return protocol.NewNull(name), nil
	}

	typ, value, typed := strings.Cut(rest, ":")
	if !typed {
		return inferEntry(name, rest), nil
	}

	bad := func(err error) (protocol.Entry, error) {
		return protocol.Entry{}, fmt.Errorf("entry %q: invalid %s value: %w", arg, typ, err)
	}

	switch typ {
	case "null":
		return protocol.NewNull(name), nil
	case "bool":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return bad(err)
		}
		return protocol.NewBool(name, v), nil
	case "int":
		v, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return bad(err)
		}
		return protocol.NewInt(name, v), nil
	case "uint":
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return bad(err)
		}
		return protocol.NewUint(name, v), nil
	case "f16":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return bad(err)
		}
		return protocol.NewFloat16(name, float32(v)), nil
	case "f32":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return bad(err)
		}
		return protocol.NewFloat32(name, float32(v)), nil
	case "f64":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return bad(err)
		}
		return protocol.NewFloat64(name, v), nil
	case "str":
		if len(value) > protocol.MaxBytesLen {
			return protocol.Entry{}, fmt.Errorf("entry %q: text longer than %d bytes", arg, protocol.MaxBytesLen)
		}
		return protocol.NewString(name, value), nil
	case "hex":
		v, err := hex.DecodeString(value)
		if err != nil {
			return bad(err)
		}
		if len(v) > protocol.MaxBytesLen {
			return protocol.Entry{}, fmt.Errorf("entry %q: more than %d bytes", arg, protocol.MaxBytesLen)
		}
		return protocol.NewBytes(name, v), nil
	default:
		// Not a known type: the colon is part of a text value.
		return inferEntry(name, rest), nil
	}
}

func inferEntry(name, value string) protocol.Entry {
	if v, err := strconv.ParseInt(value, 0, 64); err == nil {
		return protocol.NewInt(name, v)
	}
	if v, err := strconv.ParseFloat(value, 64); err == nil {
		return protocol.NewFloat64(name, v)
	}
	return protocol.NewString(name, value)
}
