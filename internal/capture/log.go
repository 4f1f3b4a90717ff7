package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
	"go.uber.org/zap"
)

// HeaderLen is the size of a record header: millis (u32 LE) and length.
const HeaderLen = 5

var (
	// ErrFormat means the log is not a record log, or is corrupt beyond
	// the current record. Reading cannot continue.
	ErrFormat = errors.New("capture: format error")
)

// Record is one logged packet.
type Record struct {
	// Millis is the logger's clock at reception, in milliseconds.
	Millis uint32

	// Offset is the byte offset of the record header in the log.
	Offset int64

	Raw    []byte
	Packet *protocol.Packet
}

// Time returns Millis as a duration.
func (r Record) Time() time.Duration {
	return time.Duration(r.Millis) * time.Millisecond
}

// Reader iterates over the records of a packet log.
type Reader struct {
	r       *bufio.Reader
	offset  int64
	skipped int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next decodable record. Records whose packet fails to
// decode are skipped and counted. Next returns io.EOF at a clean end of log
// and ErrFormat on a zero timestamp, zero length, short record, or a record
// too small to hold a packet header.
func (r *Reader) Next() (Record, error) {
	for {
		rec, err := r.next()
		if err != nil {
			return Record{}, err
		}

		p, err := protocol.DecodePacket(rec.Raw)
		if err != nil {
			r.skipped++
			logging.Debug("Skipping undecodable record",
				zap.Int64("offset", rec.Offset),
				zap.Uint32("millis", rec.Millis),
				zap.Error(err),
			)
			continue
		}
		rec.Packet = p
		return rec, nil
	}
}

func (r *Reader) next() (Record, error) {
	var header [HeaderLen]byte
	n, err := io.ReadFull(r.r, header[:])
	if err == io.EOF {
		return Record{}, io.EOF
	}
	if err != nil {
		return Record{}, fmt.Errorf("%w: short header at offset %d", ErrFormat, r.offset)
	}

	rec := Record{
		Millis: binary.LittleEndian.Uint32(header[:4]),
		Offset: r.offset,
	}
	length := int(header[4])
	r.offset += int64(n)

	if rec.Millis == 0 || length == 0 {
		return Record{}, fmt.Errorf("%w: empty record at offset %d", ErrFormat, rec.Offset)
	}

	rec.Raw = make([]byte, length)
	n, err = io.ReadFull(r.r, rec.Raw)
	r.offset += int64(n)
	if err != nil || length < protocol.LocalHeaderLen {
		return Record{}, fmt.Errorf("%w: truncated record at offset %d", ErrFormat, rec.Offset)
	}

	return rec, nil
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 { return r.offset }

// Skipped returns the number of records dropped for failing to decode.
func (r *Reader) Skipped() int { return r.skipped }

// ReadAll reads every record up to the end of the log, calling fn for each
// one whose packet id matches filter. ReadAll stops at the first error
// returned by fn or by the log; a clean end of log returns nil.
func ReadAll(r io.Reader, filter string, fn func(Record) error) error {
	reader := NewReader(r)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !rec.Packet.MatchesFilter(filter) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// Writer appends records to a packet log. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	count int
}

// NewWriter returns a writer whose timestamps count from now.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, start: time.Now()}
}

// Write logs p with the given timestamp. A zero timestamp is written as 1,
// as readers treat zero as the end of a log.
func (w *Writer) Write(millis uint32, p *protocol.Packet) error {
	raw, err := p.Encode()
	if err != nil {
		return err
	}
	return w.WriteRaw(millis, raw)
}

// WriteRaw logs an already encoded packet.
func (w *Writer) WriteRaw(millis uint32, raw []byte) error {
	if len(raw) == 0 || len(raw) > protocol.MaxPacketSize {
		return fmt.Errorf("capture: record length %d out of range", len(raw))
	}
	millis = max(millis, 1)

	buf := make([]byte, HeaderLen, HeaderLen+len(raw))
	binary.LittleEndian.PutUint32(buf, millis)
	buf[4] = uint8(len(raw))
	buf = append(buf, raw...)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("capture: write record: %w", err)
	}
	w.count++
	return nil
}

// WriteAt logs p with a timestamp taken from at, relative to the writer's
// creation time.
func (w *Writer) WriteAt(at time.Time, p *protocol.Packet) error {
	ms := max(at.Sub(w.start).Milliseconds(), 0)
	return w.Write(uint32(ms), p)
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}
