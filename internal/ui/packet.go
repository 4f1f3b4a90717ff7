package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/wccp/internal/protocol"
)

// TimeFormat is used for packet arrival times.
const TimeFormat = "15:04:05"

// KindStyle returns the style packets of kind k are rendered in.
func KindStyle(k protocol.PacketKind) lipgloss.Style {
	if k == protocol.Telemetry {
		return TelemetryStyle
	}
	return CommandStyle
}

// IDLabel renders a packet id as hex with its character form, e.g.
// "0x41 (A)".
func IDLabel(id uint8) string {
	if id >= 0x20 && id < 0x7F {
		return fmt.Sprintf("0x%02x (%c)", id, id)
	}
	return fmt.Sprintf("0x%02x", id)
}

// PacketTitle names the stream a packet belongs to.
func PacketTitle(p *protocol.Packet) string {
	if p.IsLocal() {
		return fmt.Sprintf("component 0x%02x, packet %s", p.Component, IDLabel(p.ID))
	}
	return fmt.Sprintf("unit 0x%02x, component 0x%02x, packet %s", p.Origin, p.Component, IDLabel(p.ID))
}

// RenderPacketLine renders one received packet as a log line followed by
// its entries.
func RenderPacketLine(at time.Time, p *protocol.Packet) string {
	var b strings.Builder
	if !at.IsZero() {
		b.WriteString(TimeStyle.Render(at.Format(TimeFormat + ".000")))
		b.WriteByte(' ')
	}
	b.WriteString(KindStyle(p.Kind).Render(p.Kind.String()))
	b.WriteByte(' ')
	b.WriteString(PacketTitle(p))
	if p.IsRemote() {
		b.WriteString(AddressStyle.Render(fmt.Sprintf(" -> 0x%02x #%d", p.Dest, p.Sequence)))
	}
	b.WriteByte('\n')
	writeEntryLines(&b, p.Entries, "  ")
	return strings.TrimSuffix(b.String(), "\n")
}

// RenderPacketDetail renders the full view of one packet. position is the
// 1-based index of p within a series of total packets.
func RenderPacketDetail(p *protocol.Packet, position, total int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d / %d total packets\n", position, total)

	kind := "command"
	if p.IsTelemetry() {
		kind = "telemetry"
	}
	size, err := p.Size()
	sizeText := fmt.Sprintf("%d bytes", size)
	if err != nil {
		sizeText = ErrorMessageStyle.Render(err.Error())
	}

	writeRow(&b, "type", KindStyle(p.Kind).Render(kind))
	writeRow(&b, "size", sizeText)
	writeRow(&b, "packet id", IDLabel(p.ID))
	writeRow(&b, "component id", fmt.Sprintf("0x%02x", p.Component))
	if p.IsLocal() {
		b.WriteString("local packet\n")
	} else {
		b.WriteString("remote packet\n")
		writeRow(&b, "  origin id", fmt.Sprintf("0x%02x", p.Origin))
		writeRow(&b, "  dest id", fmt.Sprintf("0x%02x", p.Dest))
		writeRow(&b, "  sequence", fmt.Sprintf("%d", p.Sequence))
	}
	writeRow(&b, "entries", fmt.Sprintf("%d", len(p.Entries)))

	writeEntryLines(&b, p.Entries, "  ")
	return b.String()
}

func writeRow(b *strings.Builder, key, value string) {
	b.WriteString(padRight(key+":", 14))
	b.WriteString(value)
	b.WriteByte('\n')
}

func writeEntryLines(b *strings.Builder, entries []protocol.Entry, indent string) {
	for _, e := range entries {
		b.WriteString(indent)
		b.WriteString(EntryNameStyle.Render(e.Name().String()))
		b.WriteByte(' ')
		b.WriteString(EntryKindStyle.Render(e.Kind().String()))
		switch {
		case e.IsStruct():
			b.WriteByte('\n')
			writeEntryLines(b, e.Struct(), indent+"  ")
		case e.IsPacket() && e.Packet() != nil:
			sub := e.Packet()
			b.WriteString(KindStyle(sub.Kind).Render(sub.Kind.String()))
			b.WriteByte(' ')
			b.WriteString(PacketTitle(sub))
			b.WriteByte('\n')
			writeEntryLines(b, sub.Entries, indent+"  ")
		default:
			b.WriteString(EntryValueStyle.Render(e.ValueString()))
			b.WriteByte('\n')
		}
	}
}
