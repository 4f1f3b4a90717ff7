// Package protocol implements the wccp binary command/telemetry protocol.
//
// This package handles encoding, decoding, and stream framing of the compact
// self-describing packets exchanged between units and components of a
// control network, typically over a serial link.
//
// # Protocol Overview
//
// A framed packet on the wire has this structure:
//   - Packet size: 1 byte (total encoded length, including this byte)
//   - Header: kind/id, component id, origin unit id
//   - Remote addressing: destination unit id + 2-byte sequence (remote only)
//   - Entries: packed contiguously, each self-describing its length
//   - Checksum: 1 byte (CRC-8, polynomial 0x07, over the packet bytes)
//   - Delimiter: 0x00
//
// The maximum packet size is 255 bytes, so a framed unit never exceeds 257
// bytes.
//
// # Entries
//
// Every entry is a named, typed value. The name is a two character mnemonic
// (e.g. "Ix", "Fy") stored as two 5-bit codes; the 6-bit type tag selects one
// of these kinds:
//   - null
//   - integer: 0-31 embedded in the tag, otherwise 1-8 magnitude bytes + sign
//   - float: zero (no payload), half, single, or double precision
//   - bytes: up to 7 bytes with the length in the tag, up to 255 with a
//     length byte
//   - struct: nested entries
//   - packet: a complete nested packet
//
// Header byte 0 holds the low 3 bits of the tag and the first name code,
// header byte 1 holds the high 3 bits of the tag and the second name code.
//
// # Usage Example - Construction
//
//	p := protocol.NewCommand('A', 0x11, protocol.Remote(0x22, 0x33, 12345))
//	p.Append(
//	    protocol.NewInt("Ix", 1),
//	    protocol.NewFloat32("Fy", 4.56),
//	    protocol.NewString("By", "abcdefghijk"),
//	)
//
//	frame, err := protocol.EncodeFrame(p)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = port.Write(frame)
//
// # Usage Example - Parsing
//
//	framer := protocol.NewFramer()
//	for {
//	    n, err := port.Read(buf)
//	    if err != nil {
//	        break
//	    }
//	    for _, p := range framer.Feed(buf[:n]) {
//	        if e, ok := p.Find("Fy"); ok {
//	            fmt.Println(e.Float())
//	        }
//	    }
//	}
//
// # Error Handling
//
// Decoding functions return wrapped sentinel errors (ErrTruncated,
// ErrMalformedHeader, ...). The Framer never fails: frames that do not decode
// or whose checksum does not match are dropped and counted in Stats.
// Entry accessors never fail either; asking for a value of the wrong kind
// returns the zero value.
//
// # Thread Safety
//
// Packets and entries are plain values with no shared state. A Framer owns
// its accumulation buffer and must be fed from a single goroutine; Stats may
// be read concurrently.
package protocol
