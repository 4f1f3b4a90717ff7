package ui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wccp/internal/protocol"
)

func remotePacket() *protocol.Packet {
	return protocol.NewTelemetry('A', 0x11, protocol.Remote(0x22, 0x01, 7), protocol.WithEntries(
		protocol.NewInt("Tp", -40),
		protocol.NewStruct("St", protocol.NewFloat32("Sx", 1.5)),
	))
}

func TestIDLabel(t *testing.T) {
	tests := []struct {
		id   uint8
		want string
	}{
		{'A', "0x41 (A)"},
		{0x05, "0x05"},
		{0x7F, "0x7f"},
	}
	for _, tt := range tests {
		if got := IDLabel(tt.id); got != tt.want {
			t.Errorf("IDLabel(%#x) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPacketTitle(t *testing.T) {
	local := protocol.NewCommand('B', 0x03)
	if got, want := PacketTitle(local), "component 0x03, packet 0x42 (B)"; got != want {
		t.Errorf("PacketTitle(local) = %q, want %q", got, want)
	}
	if got, want := PacketTitle(remotePacket()), "unit 0x22, component 0x11, packet 0x41 (A)"; got != want {
		t.Errorf("PacketTitle(remote) = %q, want %q", got, want)
	}
}

func TestRenderPacketDetail(t *testing.T) {
	p := remotePacket()
	size, err := p.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}

	out := RenderPacketDetail(p, 2, 3)

	for _, want := range []string{
		"2 / 3 total packets",
		"telemetry",
		"packet id:",
		"0x41 (A)",
		"component id: 0x11",
		"remote packet",
		"origin id:  0x22",
		"dest id:    0x01",
		"sequence:   7",
		"entries:      2",
		"Tp",
		"-40",
		"Sx",
		"1.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderPacketDetail() missing %q in:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "size:") || !strings.Contains(out, fmt.Sprintf("%d bytes", size)) {
		t.Errorf("RenderPacketDetail() missing size %d in:\n%s", size, out)
	}

	lines := strings.Split(out, "\n")
	var member string
	for _, line := range lines {
		if strings.Contains(line, "Sx") {
			member = line
		}
	}
	if !strings.HasPrefix(member, "    Sx") {
		t.Errorf("struct member line = %q, want it indented under its struct", member)
	}
}

func TestRenderPacketDetail_Local(t *testing.T) {
	out := RenderPacketDetail(protocol.NewCommand('B', 0x03), 1, 1)
	if !strings.Contains(out, "local packet") {
		t.Errorf("RenderPacketDetail() missing local marker in:\n%s", out)
	}
	if strings.Contains(out, "origin id") {
		t.Errorf("RenderPacketDetail() shows remote fields for a local packet:\n%s", out)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	pr := NewPrinter(&buf).SetWidth(80)

	pr.PrintHeader("Capture Log", "wccp log flight.bin", Detail{Key: "File", Value: "flight.bin"})
	pr.PrintPacket(time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC), remotePacket())
	pr.PrintSuccess("Log complete", Detail{Key: "Packets", Value: "1"}, Detail{Key: "Skipped", Value: "0"})
	pr.PrintError("Log failed", errors.New("truncated record"), "Check the file was fully copied")

	out := buf.String()
	for _, want := range []string{
		"CAPTURE LOG",
		"wccp log flight.bin",
		"File:",
		"12:30:15.000",
		"tlm",
		"unit 0x22, component 0x11, packet 0x41 (A)",
		"SUCCESS",
		"Packets:",
		"FAILED",
		"truncated record",
		"Check the file was fully copied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printer output missing %q", want)
		}
	}

	if strings.Index(out, "Packets:") > strings.Index(out, "Skipped:") {
		t.Error("details printed out of order")
	}
}
