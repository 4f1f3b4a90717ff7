package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/wccp/internal/protocol"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

func testFrame(t *testing.T, id uint8, opts ...protocol.PacketOption) []byte {
	t.Helper()
	opts = append(opts, protocol.WithEntries(
		protocol.NewInt("Ix", int64(id)),
		protocol.NewString("Bs", "hello"),
	))
	frame, err := protocol.EncodeFrame(protocol.NewTelemetry(id, 0x11, opts...))
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	return frame
}

func collect(t *testing.T, s *Source) []Received {
	t.Helper()
	out := make(chan Received, 64)
	if err := s.Run(context.Background(), out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	close(out)

	var got []Received
	for r := range out {
		got = append(got, r)
	}
	return got
}

func TestSource_Run(t *testing.T) {
	stream := bytes.Join([][]byte{
		testFrame(t, 'A'),
		{0x03},
		testFrame(t, 'B', protocol.Remote(0x22, 0x33, 7)),
		testFrame(t, 'C'),
	}, nil)

	for _, chunk := range []int{1, 7, 0} {
		s := NewSource("test", bytes.NewReader(stream), chunk)
		got := collect(t, s)

		if len(got) != 3 {
			t.Fatalf("chunk %d: got %d packets, want 3", chunk, len(got))
		}
		for i, want := range []uint8{'A', 'B', 'C'} {
			if got[i].Packet.ID != want {
				t.Errorf("chunk %d: packet %d id = %c, want %c", chunk, i, got[i].Packet.ID, want)
			}
			if got[i].At.IsZero() {
				t.Errorf("chunk %d: packet %d has no arrival time", chunk, i)
			}
		}
		if got[1].Packet.Sequence != 7 || got[1].Packet.Origin != 0x22 {
			t.Errorf("remote header = %+v", got[1].Packet)
		}

		stats := s.Framer().Stats()
		if stats.BytesIn != uint64(len(stream)) {
			t.Errorf("chunk %d: BytesIn = %d, want %d", chunk, stats.BytesIn, len(stream))
		}
		if stats.Resyncs != 1 {
			t.Errorf("chunk %d: Resyncs = %d, want 1", chunk, stats.Resyncs)
		}
		if !bytes.Equal(s.Raw(), stream) {
			t.Errorf("chunk %d: Raw() does not match input", chunk)
		}
	}
}

func TestSource_RunCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	s := NewSource("pipe", pr, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, make(chan Received))
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestSource_ReadError(t *testing.T) {
	pr, pw := io.Pipe()
	readErr := errors.New("line dropped")
	pw.CloseWithError(readErr)

	s := NewSource("pipe", pr, 0)
	err := s.Run(context.Background(), make(chan Received))
	if !errors.Is(err, readErr) {
		t.Errorf("Run() error = %v, want %v", err, readErr)
	}
}

type loopback struct {
	bytes.Buffer
}

func TestSource_Send(t *testing.T) {
	var lb loopback
	s := NewSource("loopback", &lb, 0)
	if !s.Writable() {
		t.Fatal("Writable() = false for a read-write source")
	}

	p := protocol.NewCommand('A', 0x11, protocol.Remote(0x22, 0x33, 1),
		protocol.WithEntries(protocol.NewBool("Ok", true)))
	if err := s.Send(p); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want, _ := protocol.EncodeFrame(p)
	if !bytes.Equal(lb.Bytes(), want) {
		t.Errorf("written = %x, want %x", lb.Bytes(), want)
	}

	got := collect(t, s)
	if len(got) != 1 || got[0].Packet.ID != 'A' || !got[0].Packet.IsCommand() {
		t.Fatalf("looped back %+v", got)
	}
}

func TestSource_SendReadOnly(t *testing.T) {
	s := NewSource("ro", bytes.NewReader(nil), 0)
	err := s.Send(protocol.NewCommand('A', 0x11))
	if !errors.Is(err, ErrNotWritable) {
		t.Errorf("Send() error = %v, want ErrNotWritable", err)
	}
}

func TestOpen_FileWithCapture(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.bin")
	capture := filepath.Join(dir, "capture.bin")
	saved := filepath.Join(dir, "saved.bin")

	stream := append(testFrame(t, 'A'), testFrame(t, 'D')...)
	if err := os.WriteFile(input, stream, 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(Options{File: input, Capture: capture, ChunkSize: 16})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Writable() {
		t.Error("file source should not be writable")
	}

	got := collect(t, s)
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}

	n, err := s.SaveRaw(saved)
	if err != nil {
		t.Fatalf("SaveRaw() error = %v", err)
	}
	if n != len(stream) {
		t.Errorf("SaveRaw() = %d bytes, want %d", n, len(stream))
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	for _, path := range []string{capture, saved} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, stream) {
			t.Errorf("%s does not match the input stream", filepath.Base(path))
		}
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("Open() with no port or file should fail")
	}
	if _, err := Open(Options{File: filepath.Join(t.TempDir(), "missing")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}

// fakePort serves reads from a buffer and records writes. Methods outside
// Read, Write and Close panic through the nil embedded Port.
type fakePort struct {
	serial.Port
	r       io.Reader
	written bytes.Buffer
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func stubSerial(t *testing.T, port *fakePort, openErr error) *[]serial.Mode {
	t.Helper()
	var modes []serial.Mode
	orig := openSerial
	openSerial = func(name string, mode *serial.Mode) (serial.Port, error) {
		modes = append(modes, *mode)
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}
	t.Cleanup(func() { openSerial = orig })
	return &modes
}

func TestOpen_PortMode(t *testing.T) {
	tests := []struct {
		name     string
		baud     int
		wantBaud int
	}{
		{name: "default baud", baud: 0, wantBaud: DefaultBaud},
		{name: "configured baud", baud: 57600, wantBaud: 57600},
		{name: "negative baud falls back", baud: -1, wantBaud: DefaultBaud},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{r: bytes.NewReader(testFrame(t, 'A'))}
			modes := stubSerial(t, port, nil)

			s, err := Open(Options{Port: "/dev/ttyUSB0", Baud: tt.baud})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if len(*modes) != 1 {
				t.Fatalf("serial port opened %d times, want 1", len(*modes))
			}
			mode := (*modes)[0]
			if mode.BaudRate != tt.wantBaud {
				t.Errorf("BaudRate = %d, want %d", mode.BaudRate, tt.wantBaud)
			}
			if mode.DataBits != 8 || mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
				t.Errorf("mode = %+v, want 8N1", mode)
			}
			if !s.Writable() {
				t.Error("serial source should be writable")
			}

			got := collect(t, s)
			if len(got) != 1 || got[0].Packet.ID != 'A' {
				t.Fatalf("got %+v, want one packet A", got)
			}

			if err := s.Send(protocol.NewCommand('B', 0x11)); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if port.written.Len() == 0 {
				t.Error("Send() wrote nothing to the port")
			}

			if err := s.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if !port.closed {
				t.Error("Close() did not close the port")
			}
		})
	}
}

func TestOpen_PortError(t *testing.T) {
	busy := errors.New("port busy")
	stubSerial(t, nil, busy)

	if _, err := Open(Options{Port: "/dev/ttyUSB0"}); !errors.Is(err, busy) {
		t.Errorf("Open() error = %v, want %v", err, busy)
	}
}

func TestOpen_AutoPort(t *testing.T) {
	orig := listPorts
	listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/ttyUSB1", IsUSB: true},
		}, nil
	}
	t.Cleanup(func() { listPorts = orig })

	var opened string
	origOpen := openSerial
	openSerial = func(name string, mode *serial.Mode) (serial.Port, error) {
		opened = name
		return &fakePort{r: bytes.NewReader(nil)}, nil
	}
	t.Cleanup(func() { openSerial = origOpen })

	s, err := Open(Options{Port: "auto"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if opened != "/dev/ttyUSB1" || s.Name() != "/dev/ttyUSB1" {
		t.Errorf("opened %q, want /dev/ttyUSB1", opened)
	}
}

func TestPickPort(t *testing.T) {
	tests := []struct {
		name    string
		ports   []*enumerator.PortDetails
		want    string
		wantErr error
	}{
		{
			name:    "no ports",
			wantErr: ErrNoPort,
		},
		{
			name: "last usb port wins",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyUSB0", IsUSB: true},
				{Name: "/dev/ttyUSB2", IsUSB: true},
				{Name: "/dev/ttyUSB1", IsUSB: true},
			},
			want: "/dev/ttyUSB2",
		},
		{
			name: "usb preferred over built-in",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyS9"},
				{Name: "/dev/ttyACM0", IsUSB: true},
			},
			want: "/dev/ttyACM0",
		},
		{
			name: "built-in ports when no usb",
			ports: []*enumerator.PortDetails{
				{Name: "/dev/ttyS0"},
				{Name: "/dev/ttyS1"},
			},
			want: "/dev/ttyS1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickPort(tt.ports)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("pickPort() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("pickPort() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("pickPort() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSource_RawLimit(t *testing.T) {
	var stream []byte
	for i := 0; i < 20; i++ {
		stream = append(stream, testFrame(t, 'A'+uint8(i))...)
	}

	const limit = 64
	s := NewSource("test", bytes.NewReader(stream), 7)
	s.setRawLimit(limit)

	if got := collect(t, s); len(got) != 20 {
		t.Fatalf("got %d packets, want 20", len(got))
	}

	raw := s.Raw()
	if !bytes.Equal(raw, stream[len(stream)-limit:]) {
		t.Errorf("Raw() = %d bytes, want the last %d bytes of the stream", len(raw), limit)
	}

	s.rawMu.Lock()
	held := len(s.raw)
	s.rawMu.Unlock()
	if held > 2*limit {
		t.Errorf("source holds %d raw bytes, want at most %d", held, 2*limit)
	}
}
