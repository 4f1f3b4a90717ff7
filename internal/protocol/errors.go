package protocol

import "errors"

var (
	ErrTruncated       = errors.New("protocol: truncated data")
	ErrMalformedHeader = errors.New("protocol: malformed header")
	ErrPacketTooLarge  = errors.New("protocol: packet too large")
	ErrValueTooLong    = errors.New("protocol: value too long")
	ErrEmptySubPacket  = errors.New("protocol: packet entry without packet")
)
