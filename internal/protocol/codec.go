package protocol

import (
	"fmt"
)

// EntryHeaderLen is the size of the name/tag header preceding every payload.
const EntryHeaderLen = 2

// scalarLen returns the payload length of tags whose length is implied by the
// tag alone. Variable tags (struct, packet, long bytes) report false.
func scalarLen(tag uint8) (int, bool) {
	switch {
	case tag >= TagIntShort:
		return 0, true
	case tag >= TagIntMulti:
		return int(tag&tagLowMask) + 1, true
	case tag >= TagBytesShort:
		return int(tag & tagLowMask), true
	}

	switch tag {
	case TagNull, TagFloatZero:
		return 0, true
	case TagFloat16:
		return 2, true
	case TagFloat32:
		return 4, true
	case TagFloat64:
		return 8, true
	default:
		return 0, false
	}
}

// DecodeEntry parses one entry from the front of buf and returns it along
// with the number of bytes consumed.
func DecodeEntry(buf []byte) (Entry, int, error) {
	if len(buf) < EntryHeaderLen {
		return Entry{}, 0, fmt.Errorf("entry header: %w", ErrTruncated)
	}

	tag := buf[0]>>5 | (buf[1]>>5)<<3
	e := Entry{
		name: nameFromCodes(buf[0], buf[1]),
		tag:  tag,
	}

	if n, ok := scalarLen(tag); ok {
		end := EntryHeaderLen + n
		if len(buf) < end {
			return Entry{}, 0, fmt.Errorf("entry %s: need %d bytes, have %d: %w", e.name, end, len(buf), ErrTruncated)
		}
		if n > 0 {
			e.payload = append([]byte{}, buf[EntryHeaderLen:end]...)
		}
		return e, end, nil
	}

	// Every variable-length kind carries its length in the first payload byte.
	if len(buf) < EntryHeaderLen+1 {
		return Entry{}, 0, fmt.Errorf("entry %s length: %w", e.name, ErrTruncated)
	}
	declared := int(buf[EntryHeaderLen])

	switch tag {
	case TagBytesLong:
		end := EntryHeaderLen + 1 + declared
		if len(buf) < end {
			return Entry{}, 0, fmt.Errorf("entry %s: need %d bytes, have %d: %w", e.name, end, len(buf), ErrTruncated)
		}
		e.payload = append([]byte{}, buf[EntryHeaderLen+1:end]...)
		return e, end, nil

	case TagStruct:
		if declared < 1 {
			return Entry{}, 0, fmt.Errorf("entry %s: struct length %d: %w", e.name, declared, ErrMalformedHeader)
		}
		end := EntryHeaderLen + declared
		if len(buf) < end {
			return Entry{}, 0, fmt.Errorf("entry %s: need %d bytes, have %d: %w", e.name, end, len(buf), ErrTruncated)
		}
		entries, err := decodeEntries(buf[EntryHeaderLen+1 : end])
		if err != nil {
			return Entry{}, 0, fmt.Errorf("struct %s: %w", e.name, err)
		}
		e.entries = entries
		return e, end, nil

	case TagPacket:
		end := EntryHeaderLen + declared
		if len(buf) < end {
			return Entry{}, 0, fmt.Errorf("entry %s: need %d bytes, have %d: %w", e.name, end, len(buf), ErrTruncated)
		}
		p, err := DecodePacket(buf[EntryHeaderLen:end])
		if err != nil {
			return Entry{}, 0, fmt.Errorf("sub-packet %s: %w", e.name, err)
		}
		e.packet = p
		return e, end, nil
	}

	return Entry{}, 0, fmt.Errorf("entry %s: tag %d: %w", e.name, tag, ErrMalformedHeader)
}

// decodeEntries parses entries until buf is exhausted. An entry overrunning
// the end of buf is an error.
func decodeEntries(buf []byte) ([]Entry, error) {
	var entries []Entry
	for off := 0; off < len(buf); {
		e, n, err := DecodeEntry(buf[off:])
		if err != nil {
			return nil, fmt.Errorf("entry %d at offset %d: %w", len(entries), off, err)
		}
		entries = append(entries, e)
		off += n
	}
	return entries, nil
}

// Encode serializes the entry. Struct and packet payloads are rebuilt from
// their children on every call.
func (e Entry) Encode() ([]byte, error) {
	return e.appendTo(nil)
}

// EncodedLen returns the number of bytes Encode would produce.
func (e Entry) EncodedLen() (int, error) {
	buf, err := e.Encode()
	if err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (e Entry) appendTo(dst []byte) ([]byte, error) {
	c0, c1 := e.name.codes()
	tag := e.tag & tagMask
	dst = append(dst, (tag&tagLowMask)<<5|c0, (tag>>3)<<5|c1)

	switch tag {
	case TagBytesLong:
		if len(e.payload) > MaxBytesLen {
			return nil, fmt.Errorf("entry %s: %d bytes: %w", e.name, len(e.payload), ErrValueTooLong)
		}
		dst = append(dst, byte(len(e.payload)))
		return append(dst, e.payload...), nil

	case TagStruct:
		lenAt := len(dst)
		dst = append(dst, 0)
		for i, child := range e.entries {
			var err error
			if dst, err = child.appendTo(dst); err != nil {
				return nil, fmt.Errorf("struct %s entry %d: %w", e.name, i, err)
			}
		}
		n := len(dst) - lenAt
		if n > MaxPacketSize {
			return nil, fmt.Errorf("struct %s: %d bytes: %w", e.name, n, ErrPacketTooLarge)
		}
		dst[lenAt] = byte(n)
		return dst, nil

	case TagPacket:
		if e.packet == nil {
			return nil, fmt.Errorf("entry %s: %w", e.name, ErrEmptySubPacket)
		}
		sub, err := e.packet.Encode()
		if err != nil {
			return nil, fmt.Errorf("sub-packet %s: %w", e.name, err)
		}
		return append(dst, sub...), nil
	}

	return append(dst, e.payload...), nil
}
