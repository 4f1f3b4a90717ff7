package protocol

import (
	"fmt"
	"sync/atomic"
)

// PacketOption customizes a packet built by NewCommand or NewTelemetry.
type PacketOption func(*Packet)

// Remote addresses a packet from unit origin to unit dest. An origin of
// LocalUnit leaves the packet local and ignores dest and seq.
func Remote(origin, dest uint8, seq uint16) PacketOption {
	return func(p *Packet) {
		p.Origin = origin
		if origin == LocalUnit {
			return
		}
		p.Dest = dest
		p.Sequence = seq
	}
}

// WithEntries sets the initial entries.
func WithEntries(entries ...Entry) PacketOption {
	return func(p *Packet) {
		p.Entries = append(p.Entries[:0], entries...)
	}
}

// NewCommand builds a local command packet. The id is masked to 7 bits.
func NewCommand(id, component uint8, opts ...PacketOption) *Packet {
	return newPacket(Command, id, component, opts)
}

// NewTelemetry builds a local telemetry packet. The id is masked to 7 bits.
func NewTelemetry(id, component uint8, opts ...PacketOption) *Packet {
	return newPacket(Telemetry, id, component, opts)
}

func newPacket(kind PacketKind, id, component uint8, opts []PacketOption) *Packet {
	p := &Packet{
		Kind:      kind,
		ID:        id & MaxPacketID,
		Component: component,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Global sequence counter (thread-safe)
var sequenceCounter atomic.Uint32

// NextSequence returns the next sequence number for outgoing remote
// packets. It wraps at 65535 and skips 0 so that a zero sequence always means
// "unset".
func NextSequence() uint16 {
	for {
		seq := uint16(sequenceCounter.Add(1))
		if seq != 0 {
			return seq
		}
	}
}

// BuildRemoteCommand builds a command addressed from origin to dest, stamped
// with the next sequence number.
func BuildRemoteCommand(id, component, origin, dest uint8, entries ...Entry) (*Packet, error) {
	if origin == LocalUnit {
		return nil, fmt.Errorf("remote command from unit %d: %w", origin, ErrMalformedHeader)
	}
	p := NewCommand(id, component, Remote(origin, dest, NextSequence()), WithEntries(entries...))
	if _, err := p.Size(); err != nil {
		return nil, err
	}
	return p, nil
}
