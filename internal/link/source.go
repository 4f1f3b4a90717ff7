package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the read size used when Options.ChunkSize is unset.
	DefaultChunkSize = 512

	// DefaultBaud is the line speed used when Options.Baud is unset.
	DefaultBaud = 115200

	// DefaultRawLimit is how many of the most recent bytes a source keeps
	// for SaveRaw.
	DefaultRawLimit = 4 << 20
)

var (
	ErrNoPort      = errors.New("link: no serial port detected")
	ErrNotWritable = errors.New("link: source is read-only")
)

// Received is a packet delivered by a source with its arrival time.
type Received struct {
	Packet *protocol.Packet
	At     time.Time
}

// Options selects and configures a byte source.
type Options struct {
	// Port is a serial device path, opened 8N1 at Baud.
	Port string
	Baud int

	// File is a capture file of framed packets. Ignored when Port is set.
	File string

	// Capture tees every raw byte read into this file.
	Capture string

	ChunkSize int

	// RawLimit caps the bytes kept for SaveRaw. Zero means DefaultRawLimit.
	RawLimit int
}

// Source reads framed packets from a serial device, a capture file, or any
// reader.
type Source struct {
	name   string
	r      io.Reader
	w      io.Writer
	closer io.Closer

	capture *os.File
	framer  *protocol.Framer
	chunk   int

	// raw holds the most recent bytes read, at most 2*rawLimit before
	// trimming.
	rawMu    sync.Mutex
	raw      []byte
	rawLimit int

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Open opens the source described by opts. A Port of "auto" picks the last
// detected serial device.
func Open(opts Options) (*Source, error) {
	switch {
	case opts.Port != "":
		port := opts.Port
		if port == "auto" {
			detected, err := DetectPort()
			if err != nil {
				return nil, err
			}
			port = detected
		}
		return openPort(port, opts)

	case opts.File != "":
		f, err := os.Open(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open capture file: %w", err)
		}
		s := newSource(opts.File, f, nil, f, opts.ChunkSize)
		s.setRawLimit(opts.RawLimit)
		logging.LogSource(s.name, "file_opened")
		return s, s.openCapture(opts.Capture)

	default:
		return nil, fmt.Errorf("link: no port or file given")
	}
}

// openSerial opens a serial device. Tests replace it.
var openSerial = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

func openPort(port string, opts Options) (*Source, error) {
	baud := opts.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	p, err := openSerial(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}

	s := newSource(port, p, p, p, opts.ChunkSize)
	s.setRawLimit(opts.RawLimit)

	logging.Info("Serial port opened",
		zap.String("port", port),
		zap.Int("baud", baud),
	)
	return s, s.openCapture(opts.Capture)
}

// NewSource wraps rw as a source. Writes are enabled when rw implements
// io.Writer, and Close closes it when it implements io.Closer.
func NewSource(name string, rw io.Reader, chunkSize int) *Source {
	w, _ := rw.(io.Writer)
	c, _ := rw.(io.Closer)
	return newSource(name, rw, w, c, chunkSize)
}

func newSource(name string, r io.Reader, w io.Writer, c io.Closer, chunkSize int) *Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Source{
		name:     name,
		r:        r,
		w:        w,
		closer:   c,
		framer:   protocol.NewFramer(),
		chunk:    chunkSize,
		rawLimit: DefaultRawLimit,
	}
}

func (s *Source) setRawLimit(n int) {
	if n > 0 {
		s.rawLimit = n
	}
}

func (s *Source) openCapture(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.Close()
		return fmt.Errorf("failed to open capture output: %w", err)
	}
	s.capture = f
	return nil
}

// Name returns the device or file path.
func (s *Source) Name() string { return s.name }

// Writable reports whether Send can be used.
func (s *Source) Writable() bool { return s.w != nil }

// Framer exposes the source's framer for statistics.
func (s *Source) Framer() *protocol.Framer { return s.framer }

// Run reads until EOF, an error, or ctx is cancelled, delivering every
// validated packet on out. It returns nil on EOF and ctx.Err() on
// cancellation. Run does not close out.
func (s *Source) Run(ctx context.Context, out chan<- Received) error {
	stop := context.AfterFunc(ctx, func() {
		// Unblocks a pending Read.
		_ = s.Close()
	})
	defer stop()

	buf := make([]byte, s.chunk)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			at := time.Now()
			s.record(buf[:n])

			for _, p := range s.framer.Feed(buf[:n]) {
				select {
				case out <- Received{Packet: p, At: at}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				logging.LogSource(s.name, "eof")
				return nil
			}
			return fmt.Errorf("read %s: %w", s.name, err)
		}
	}
}

func (s *Source) record(data []byte) {
	s.rawMu.Lock()
	s.raw = append(s.raw, data...)
	if len(s.raw) > 2*s.rawLimit {
		s.raw = append(s.raw[:0], s.raw[len(s.raw)-s.rawLimit:]...)
	}
	s.rawMu.Unlock()

	if s.capture != nil {
		if _, err := s.capture.Write(data); err != nil {
			logging.Warn("Capture write failed",
				zap.String("source", s.name),
				zap.Error(err),
			)
		}
	}
}

// Raw returns a copy of the most recent bytes read, up to the raw limit.
// Use Options.Capture to keep a complete copy of a long session.
func (s *Source) Raw() []byte {
	s.rawMu.Lock()
	defer s.rawMu.Unlock()
	raw := s.raw
	if len(raw) > s.rawLimit {
		raw = raw[len(raw)-s.rawLimit:]
	}
	return append([]byte(nil), raw...)
}

// SaveRaw writes the bytes returned by Raw to path.
func (s *Source) SaveRaw(path string) (int, error) {
	raw := s.Raw()
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return 0, fmt.Errorf("failed to save raw data: %w", err)
	}
	return len(raw), nil
}

// Send frames p and writes it to the source.
func (s *Source) Send(p *protocol.Packet) error {
	if s.w == nil {
		return ErrNotWritable
	}

	frame, err := protocol.EncodeFrame(p)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("write %s: %w", s.name, err)
	}
	logging.LogRawBytes("Frame sent", frame)
	return nil
}

// Close closes the source and capture file.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.closer != nil {
			errs = append(errs, s.closer.Close())
		}
		if s.capture != nil {
			errs = append(errs, s.capture.Close())
		}
		s.closeErr = errors.Join(errs...)
		logging.LogSource(s.name, "closed")
	})
	return s.closeErr
}

// listPorts enumerates serial devices. Tests replace it.
var listPorts = enumerator.GetDetailedPortsList

// DetectPort returns the last serial device in name order, preferring USB
// adapters over built-in ports.
func DetectPort() (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return pickPort(ports)
}

func pickPort(ports []*enumerator.PortDetails) (string, error) {
	var usb, other []string
	for _, p := range ports {
		if p.IsUSB {
			usb = append(usb, p.Name)
		} else {
			other = append(other, p.Name)
		}
	}

	candidates := usb
	if len(candidates) == 0 {
		candidates = other
	}
	if len(candidates) == 0 {
		return "", ErrNoPort
	}
	sort.Strings(candidates)
	port := candidates[len(candidates)-1]
	logging.Debug("Serial port detected", zap.String("port", port), zap.Int("candidates", len(candidates)))
	return port, nil
}
