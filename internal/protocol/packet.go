package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Packet envelope layout
const (
	// LocalUnit is the origin id reserved for packets produced by the
	// receiving unit itself. Local packets carry no destination or sequence.
	LocalUnit = 0

	LocalHeaderLen  = 4
	RemoteHeaderLen = 7

	// MaxPacketSize is bounded by the single size byte.
	MaxPacketSize = 255

	// MaxPacketID is the largest id that fits beside the kind bit.
	MaxPacketID = 0x7F

	kindBit = 0x80
)

// PacketKind distinguishes commands from telemetry.
type PacketKind uint8

const (
	Command   PacketKind = 0
	Telemetry PacketKind = 1
)

func (k PacketKind) String() string {
	if k == Telemetry {
		return "tlm"
	}
	return "cmd"
}

// Packet is an addressed, ordered list of entries.
//
// Wire layout:
//
//	[0]     size           total encoded length, including this byte
//	[1]     kind | id      bit 7 = kind, bits 0-6 = packet id
//	[2]     component      sub-system address
//	[3]     origin         originating unit, 0 = local
//	[4]     dest           remote only
//	[5-6]   sequence       remote only, little-endian
//	[4|7+]  entries
type Packet struct {
	Kind      PacketKind
	ID        uint8
	Component uint8
	Origin    uint8
	Dest      uint8
	Sequence  uint16
	Entries   []Entry
}

// clone copies the header and the entry list.
func (p *Packet) clone() *Packet {
	if p == nil {
		return nil
	}
	c := *p
	c.Entries = append([]Entry(nil), p.Entries...)
	return &c
}

func (p *Packet) IsCommand() bool   { return p.Kind == Command }
func (p *Packet) IsTelemetry() bool { return p.Kind == Telemetry }
func (p *Packet) IsLocal() bool     { return p.Origin == LocalUnit }
func (p *Packet) IsRemote() bool    { return p.Origin != LocalUnit }

// HeaderLen returns the number of envelope bytes preceding the entries.
func (p *Packet) HeaderLen() int {
	if p.IsRemote() {
		return RemoteHeaderLen
	}
	return LocalHeaderLen
}

// DecodePacket parses a packet from buf. buf may be longer than the packet;
// only buf[0] bytes are read.
func DecodePacket(buf []byte) (*Packet, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("packet size: %w", ErrTruncated)
	}

	size := int(buf[0])
	if size > len(buf) {
		return nil, fmt.Errorf("packet size %d exceeds %d available bytes: %w", size, len(buf), ErrMalformedHeader)
	}
	if size < LocalHeaderLen {
		return nil, fmt.Errorf("packet size %d below header length: %w", size, ErrMalformedHeader)
	}

	p := &Packet{
		Kind:      PacketKind(buf[1] >> 7),
		ID:        buf[1] & MaxPacketID,
		Component: buf[2],
		Origin:    buf[3],
	}

	headerLen := LocalHeaderLen
	if p.IsRemote() {
		if size < RemoteHeaderLen {
			return nil, fmt.Errorf("remote packet size %d below header length: %w", size, ErrMalformedHeader)
		}
		p.Dest = buf[4]
		p.Sequence = binary.LittleEndian.Uint16(buf[5:7])
		headerLen = RemoteHeaderLen
	}

	entries, err := decodeEntries(buf[headerLen:size])
	if err != nil {
		return nil, fmt.Errorf("packet %s: %w", p.describe(), err)
	}
	p.Entries = entries

	return p, nil
}

// Encode serializes the packet and backpatches the size byte.
func (p *Packet) Encode() ([]byte, error) {
	buf := make([]byte, p.HeaderLen(), MaxPacketSize)
	buf[1] = byte(p.Kind&1)<<7 | p.ID&MaxPacketID
	buf[2] = p.Component
	buf[3] = p.Origin
	if p.IsRemote() {
		buf[4] = p.Dest
		binary.LittleEndian.PutUint16(buf[5:7], p.Sequence)
	}

	for i, e := range p.Entries {
		var err error
		if buf, err = e.appendTo(buf); err != nil {
			return nil, fmt.Errorf("packet %s entry %d: %w", p.describe(), i, err)
		}
	}

	if len(buf) > MaxPacketSize {
		return nil, fmt.Errorf("packet %s: %d bytes: %w", p.describe(), len(buf), ErrPacketTooLarge)
	}
	buf[0] = byte(len(buf))

	return buf, nil
}

// Size returns the encoded length of the packet.
func (p *Packet) Size() (int, error) {
	buf, err := p.Encode()
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Checksum returns the CRC-8 of the encoded packet.
func (p *Packet) Checksum() (uint8, error) {
	buf, err := p.Encode()
	if err != nil {
		return 0, err
	}
	return Checksum(buf), nil
}

// Find returns the first entry whose name matches, ignoring case.
func (p *Packet) Find(name string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.name.Matches(name) {
			return e, true
		}
	}
	return Entry{}, false
}

// MatchesFilter reports whether p's id appears in filter, a string of id
// characters such as "ABD". An empty filter matches every packet.
func (p *Packet) MatchesFilter(filter string) bool {
	return filter == "" || strings.IndexByte(filter, p.ID) >= 0
}

// Append adds entries to the end of the packet.
func (p *Packet) Append(entries ...Entry) *Packet {
	p.Entries = append(p.Entries, entries...)
	return p
}

// Key identifies the stream a packet belongs to.
type Key struct {
	Unit      uint8
	Component uint8
	ID        uint8
}

// Key returns the origin/component/id triple of p.
func (p *Packet) Key() Key {
	return Key{Unit: p.Origin, Component: p.Component, ID: p.ID}
}

func (k Key) String() string {
	return fmt.Sprintf("%d.%d/%s", k.Unit, k.Component, idString(k.ID))
}

func (p *Packet) describe() string {
	return fmt.Sprintf("%s %s", p.Kind, idString(p.ID))
}

// idString shows printable ids as quoted characters, as they are
// conventionally ASCII letters.
func idString(id uint8) string {
	if id >= 0x20 && id < 0x7F {
		return fmt.Sprintf("'%c'", id)
	}
	return fmt.Sprintf("0x%02X", id)
}
