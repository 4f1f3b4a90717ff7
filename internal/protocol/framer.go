package protocol

import (
	"sync/atomic"

	"github.com/muurk/wccp/internal/logging"
)

const (
	// Delimiter terminates every frame on the wire.
	Delimiter = 0x00

	// FrameOverhead is the checksum byte plus the delimiter.
	FrameOverhead = 2

	// MaxFrameSize is the largest framed unit: packet, checksum, delimiter.
	MaxFrameSize = MaxPacketSize + FrameOverhead
)

// FramerState is the framer's synchronization state.
type FramerState int

const (
	StateAccumulating FramerState = iota
	StateResyncing
)

func (s FramerState) String() string {
	if s == StateResyncing {
		return "resyncing"
	}
	return "accumulating"
}

// FramerStats is a snapshot of a framer's counters.
type FramerStats struct {
	BytesIn        uint64
	Frames         uint64
	ChecksumErrors uint64
	DecodeErrors   uint64
	Resyncs        uint64
	Discarded      uint64
}

// Framer extracts validated packets from a byte stream. Each frame is the
// encoded packet followed by its checksum and a delimiter.
//
// Feed must be called from a single goroutine. Stats may be called from any.
type Framer struct {
	buf   []byte
	state FramerState

	// resyncFrom is the first buffer offset not yet ruled out as a frame
	// start while resyncing.
	resyncFrom int

	bytesIn        atomic.Uint64
	frames         atomic.Uint64
	checksumErrors atomic.Uint64
	decodeErrors   atomic.Uint64
	resyncs        atomic.Uint64
	discarded      atomic.Uint64
}

// NewFramer returns a framer in the accumulating state.
func NewFramer() *Framer {
	return &Framer{
		buf: make([]byte, 0, 2*MaxFrameSize),
	}
}

// EncodeFrame encodes p and appends its checksum and the delimiter.
func EncodeFrame(p *Packet) ([]byte, error) {
	buf, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return append(buf, Checksum(buf), Delimiter), nil
}

// Feed appends data to the stream and returns every packet completed by it.
// Partial frames are kept for the next call.
func (f *Framer) Feed(data []byte) []*Packet {
	f.bytesIn.Add(uint64(len(data)))
	f.buf = append(f.buf, data...)

	var packets []*Packet
	for {
		if f.state == StateResyncing {
			if !f.resync() {
				break
			}
			continue
		}

		if len(f.buf) == 0 {
			break
		}
		size := int(f.buf[0])
		if size >= LocalHeaderLen && len(f.buf) < size+FrameOverhead {
			break
		}

		// A size too small for any header cannot start a frame.
		if size < LocalHeaderLen || f.buf[size+1] != Delimiter {
			f.state = StateResyncing
			f.resyncFrom = 1
			f.resyncs.Add(1)
			continue
		}

		if p := f.frame(size); p != nil {
			packets = append(packets, p)
		}
		f.consume(size + FrameOverhead)
	}

	return packets
}

// frame validates the delimited frame at the start of the buffer.
func (f *Framer) frame(size int) *Packet {
	body := f.buf[:size]

	if Checksum(body) != f.buf[size] {
		f.checksumErrors.Add(1)
		logging.LogFrameDropped("checksum", f.buf[:size+FrameOverhead], nil)
		return nil
	}

	p, err := DecodePacket(body)
	if err != nil {
		f.decodeErrors.Add(1)
		logging.LogFrameDropped("decode", f.buf[:size+FrameOverhead], err)
		return nil
	}

	f.frames.Add(1)
	return p
}

type candidate int

const (
	candidateInvalid candidate = iota
	candidateIncomplete
	candidateValid
)

// candidateAt reports whether a frame can start at offset i.
func (f *Framer) candidateAt(i int) candidate {
	rest := f.buf[i:]
	size := int(rest[0])
	if size < LocalHeaderLen {
		return candidateInvalid
	}
	if len(rest) < size+FrameOverhead {
		return candidateIncomplete
	}
	if rest[size+1] != Delimiter || Checksum(rest[:size]) != rest[size] {
		return candidateInvalid
	}
	if _, err := DecodePacket(rest[:size]); err != nil {
		return candidateInvalid
	}
	return candidateValid
}

// resync drops bytes until the buffer starts with a whole delimited frame
// that passes its checksum and decodes. An offset whose frame is still
// incomplete is kept until more bytes arrive, unless a verified frame starts
// later in the buffer. The outcome does not depend on how the stream was
// chunked. It returns false when more input is needed.
func (f *Framer) resync() bool {
	pending := -1
	for i := f.resyncFrom; i < len(f.buf); i++ {
		switch f.candidateAt(i) {
		case candidateValid:
			f.realign(i)
			return true
		case candidateIncomplete:
			if pending < 0 {
				pending = i
			}
		}
	}

	if pending < 0 {
		// Nothing left that could start a frame.
		pending = len(f.buf)
	}

	// Stay resyncing: the next frame is only trusted once it verifies.
	f.discarded.Add(uint64(pending))
	f.consume(pending)
	f.resyncFrom = 0
	return false
}

func (f *Framer) realign(n int) {
	f.discarded.Add(uint64(n))
	f.consume(n)
	f.state = StateAccumulating
	f.resyncFrom = 0
	logging.LogResync(n, len(f.buf))
}

func (f *Framer) consume(n int) {
	f.buf = append(f.buf[:0], f.buf[n:]...)
}

// State returns the current synchronization state.
func (f *Framer) State() FramerState {
	return f.state
}

// Buffered returns the number of bytes waiting for a complete frame.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops buffered bytes and returns to the accumulating state. Counters
// are kept.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.state = StateAccumulating
	f.resyncFrom = 0
}

// Stats returns a snapshot of the framer's counters.
func (f *Framer) Stats() FramerStats {
	return FramerStats{
		BytesIn:        f.bytesIn.Load(),
		Frames:         f.frames.Load(),
		ChecksumErrors: f.checksumErrors.Load(),
		DecodeErrors:   f.decodeErrors.Load(),
		Resyncs:        f.resyncs.Load(),
		Discarded:      f.discarded.Load(),
	}
}
