package protocol

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Field is one leaf value of a packet with its dotted path, e.g. "St.Sx"
// for a struct member or "Sp.Px" for an entry of a nested packet.
type Field struct {
	Path  string
	Kind  Kind
	Value any
}

// Value returns the entry's value as a plain Go value: nil, int64 (uint64
// above math.MaxInt64), float64, string for printable byte strings and
// []byte otherwise. Struct and packet entries return nil; use Fields.
func (e Entry) Value() any {
	switch e.Kind() {
	case KindInt:
		if !e.IsNegative() && e.Uint() > math.MaxInt64 {
			return e.Uint()
		}
		return e.Int()
	case KindFloat:
		return e.Float()
	case KindBytes:
		if isPrintable(e.payload) {
			return e.Text()
		}
		return e.Bytes()
	default:
		return nil
	}
}

// ValueString renders the entry's value for display.
func (e Entry) ValueString() string {
	switch e.Kind() {
	case KindNull:
		return "null"
	case KindInt:
		if e.IsNegative() {
			return "-" + strconv.FormatUint(e.magnitude(), 10)
		}
		return strconv.FormatUint(e.Uint(), 10)
	case KindFloat:
		return strconv.FormatFloat(e.Float(), 'g', -1, 64)
	case KindBytes:
		if isPrintable(e.payload) {
			return strconv.Quote(e.Text())
		}
		return "0x" + hex.EncodeToString(e.payload)
	case KindStruct:
		return fmt.Sprintf("{%d entries}", len(e.entries))
	case KindPacket:
		if e.packet == nil {
			return "<nil packet>"
		}
		return e.packet.Summary()
	default:
		return "?"
	}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s", e.name, e.Kind(), e.ValueString())
}

// Summary renders the packet header on one line.
func (p *Packet) Summary() string {
	if p.IsRemote() {
		return fmt.Sprintf("%s %s %d.%d -> %d #%d [%d]",
			p.Kind, idString(p.ID), p.Origin, p.Component, p.Dest, p.Sequence, len(p.Entries))
	}
	return fmt.Sprintf("%s %s local.%d [%d]", p.Kind, idString(p.ID), p.Component, len(p.Entries))
}

// String renders the packet and its entries, nested entries indented.
func (p *Packet) String() string {
	var b strings.Builder
	b.WriteString(p.Summary())
	writeEntries(&b, p.Entries, 1)
	return b.String()
}

func writeEntries(b *strings.Builder, entries []Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(indent)
		b.WriteString(e.String())
		switch {
		case e.IsStruct():
			writeEntries(b, e.entries, depth+1)
		case e.IsPacket() && e.packet != nil:
			writeEntries(b, e.packet.Entries, depth+1)
		}
	}
}

// Fields flattens the packet's entries into leaf values in wire order.
func (p *Packet) Fields() []Field {
	return appendFields(nil, "", p.Entries)
}

func appendFields(dst []Field, prefix string, entries []Entry) []Field {
	for _, e := range entries {
		path := prefix + e.name.String()
		switch {
		case e.IsStruct():
			dst = appendFields(dst, path+".", e.entries)
		case e.IsPacket():
			if e.packet != nil {
				dst = appendFields(dst, path+".", e.packet.Entries)
			}
		default:
			dst = append(dst, Field{Path: path, Kind: e.Kind(), Value: e.Value()})
		}
	}
	return dst
}

func isPrintable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if r < 0x20 || r == 0x7F {
			return false
		}
	}
	return true
}
