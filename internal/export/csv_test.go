package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/protocol"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func items() []history.Item {
	first := protocol.NewTelemetry('T', 0x11, protocol.Remote(0x22, 0x33, 7), protocol.WithEntries(
		protocol.NewInt("Tp", -40),
		protocol.NewStruct("St", protocol.NewFloat32("Sx", 1.5), protocol.NewNull("Sn")),
		protocol.NewString("Nm", "probe"),
	))
	second := protocol.NewTelemetry('T', 0x11, protocol.Remote(0x22, 0x33, 8), protocol.WithEntries(
		protocol.NewInt("Tp", 12),
		protocol.NewBytes("Rw", []byte{0x00, 0xFF}),
	))
	return []history.Item{
		{Packet: first, At: epoch},
		{Packet: second, At: epoch.Add(250 * time.Millisecond)},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return records
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, items()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records := readCSV(t, buf.Bytes())
	want := [][]string{
		{"time", "elapsed_ms", "unit", "component", "packet_id", "kind", "sequence", "Tp", "St.Sx", "St.Sn", "Nm", "Rw"},
		{"2024-05-01T12:00:00Z", "0", "34", "17", "T", "tlm", "7", "-40", "1.5", "", "probe", ""},
		{"2024-05-01T12:00:00.25Z", "250", "34", "17", "T", "tlm", "8", "12", "", "", "", "00ff"},
	}

	if len(records) != len(want) {
		t.Fatalf("got %d rows, want %d", len(records), len(want))
	}
	for i := range want {
		if strings.Join(records[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d = %v\nwant %v", i, records[i], want[i])
		}
	}
}

func TestWriteCSV_LocalPacket(t *testing.T) {
	var buf bytes.Buffer
	local := protocol.NewCommand('A', 0x05, protocol.WithEntries(protocol.NewUint("Ct", 1<<63)))
	if err := WriteCSV(&buf, []history.Item{{Packet: local, At: epoch}}); err != nil {
		t.Fatal(err)
	}

	row := readCSV(t, buf.Bytes())[1]
	if row[2] != "0" || row[5] != "cmd" || row[6] != "" {
		t.Errorf("local header columns = %v", row[2:7])
	}
	if row[7] != "9223372036854775808" {
		t.Errorf("Ct = %q", row[7])
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{nil, ""},
		{int64(-3), "-3"},
		{uint64(18446744073709551615), "18446744073709551615"},
		{0.1, "0.1"},
		{"a,b", "a,b"},
		{[]byte{1, 2}, "0102"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	h := history.New(0)
	for _, item := range items() {
		h.Add(item.Packet, item.At)
	}
	h.Add(protocol.NewCommand('A', 0x05), epoch)

	e := New(dir)
	paths, err := e.All(h)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "wccp_22_11_54.csv"),
		filepath.Join(dir, "wccp_00_05_41.csv"),
	}
	if strings.Join(paths, " ") != strings.Join(want, " ") {
		t.Fatalf("All() = %v, want %v", paths, want)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if rows := readCSV(t, data); len(rows) != 3 {
		t.Errorf("%s has %d rows, want 3", paths[0], len(rows))
	}

	if _, err := e.Series(protocol.Key{ID: 'Z'}, nil); err == nil {
		t.Error("Series() with no items should fail")
	}
}
