package relay

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/muurk/wccp/internal/protocol"
)

// Message types sent to and accepted from websocket clients.
const (
	TypeHello  = "hello"
	TypePacket = "packet"
	TypeSend   = "send"
	TypeAck    = "ack"
	TypeError  = "error"
)

// Hello is the first message a client receives.
type Hello struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
	Source   string `json:"source"`
	Version  string `json:"version"`
	Writable bool   `json:"writable"`
}

// PacketMessage is a decoded packet as sent to clients.
type PacketMessage struct {
	Type      string         `json:"type,omitempty"`
	At        time.Time      `json:"at"`
	Kind      string         `json:"kind"`
	ID        int            `json:"id"`
	IDChar    string         `json:"id_char,omitempty"`
	Component int            `json:"component"`
	Origin    int            `json:"origin"`
	Local     bool           `json:"local"`
	Dest      *int           `json:"dest,omitempty"`
	Sequence  *int           `json:"sequence,omitempty"`
	Size      int            `json:"size"`
	Hex       string         `json:"hex"`
	Entries   []EntryMessage `json:"entries"`
}

// EntryMessage is one entry. Byte strings that are not printable text are
// sent hex encoded with Hex set.
type EntryMessage struct {
	Name    string         `json:"name"`
	Kind    string         `json:"kind"`
	Value   any            `json:"value"`
	Hex     bool           `json:"hex,omitempty"`
	Entries []EntryMessage `json:"entries,omitempty"`
	Packet  *PacketMessage `json:"packet,omitempty"`
}

// Request is a message from a client. A send request carries an encoded
// packet in Hex, which is framed and written to the source.
type Request struct {
	Type string `json:"type"`
	Hex  string `json:"hex"`
}

// Reply answers a Request.
type Reply struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// NewPacketMessage converts a packet for clients.
func NewPacketMessage(p *protocol.Packet, at time.Time) (*PacketMessage, error) {
	raw, err := p.Encode()
	if err != nil {
		return nil, err
	}

	m := &PacketMessage{
		Type:      TypePacket,
		At:        at,
		Kind:      p.Kind.String(),
		ID:        int(p.ID),
		Component: int(p.Component),
		Origin:    int(p.Origin),
		Local:     p.IsLocal(),
		Size:      len(raw),
		Hex:       hex.EncodeToString(raw),
		Entries:   entryMessages(p.Entries),
	}
	if p.ID > 0x20 && p.ID < 0x7F {
		m.IDChar = string(rune(p.ID))
	}
	if p.IsRemote() {
		dest, seq := int(p.Dest), int(p.Sequence)
		m.Dest, m.Sequence = &dest, &seq
	}
	return m, nil
}

func entryMessages(entries []protocol.Entry) []EntryMessage {
	out := make([]EntryMessage, 0, len(entries))
	for _, e := range entries {
		em := EntryMessage{
			Name: e.Name().String(),
			Kind: e.Kind().String(),
		}
		switch {
		case e.IsStruct():
			em.Entries = entryMessages(e.Struct())
		case e.IsPacket():
			if sub := e.Packet(); sub != nil {
				if pm, err := NewPacketMessage(sub, time.Time{}); err == nil {
					pm.Type = ""
					em.Packet = pm
				}
			}
		default:
			v := e.Value()
			if b, ok := v.([]byte); ok {
				v = hex.EncodeToString(b)
				em.Hex = true
			}
			em.Value = v
		}
		out = append(out, em)
	}
	return out
}

// decodeRequest parses a client request into a packet to send.
func decodeRequest(data []byte) (*protocol.Packet, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if req.Type != TypeSend {
		return nil, fmt.Errorf("unknown request type %q", req.Type)
	}

	raw, err := hex.DecodeString(req.Hex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return protocol.DecodePacket(raw)
}
