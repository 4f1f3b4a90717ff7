package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wccp/internal/capture"
	"github.com/muurk/wccp/internal/protocol"
)

func TestSampleData_Framed(t *testing.T) {
	data, err := sampleData(false)
	if err != nil {
		t.Fatalf("sampleData() error = %v", err)
	}

	f := protocol.NewFramer()
	packets := f.Feed(data)
	want := protocol.SamplePackets()
	if len(packets) != len(want) {
		t.Fatalf("decoded %d packets, want %d", len(packets), len(want))
	}
	for i, p := range packets {
		if p.ID != want[i].ID || p.Kind != want[i].Kind || p.Origin != want[i].Origin {
			t.Errorf("packet %d = %c/%v/%#x, want %c/%v/%#x",
				i, p.ID, p.Kind, p.Origin, want[i].ID, want[i].Kind, want[i].Origin)
		}
	}
	if stats := f.Stats(); stats.ChecksumErrors+stats.DecodeErrors+stats.Resyncs != 0 {
		t.Errorf("framer stats = %+v, want no errors", stats)
	}
}

func TestSampleData_Log(t *testing.T) {
	data, err := sampleData(true)
	if err != nil {
		t.Fatalf("sampleData() error = %v", err)
	}

	var ids []byte
	var times []time.Duration
	err = capture.ReadAll(bytes.NewReader(data), "", func(rec capture.Record) error {
		ids = append(ids, rec.Packet.ID)
		times = append(times, rec.Time())
		return nil
	})
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(ids) != "ABCD" {
		t.Errorf("ids = %q, want ABCD", ids)
	}
	if len(times) != 4 || times[0] != time.Second || times[3] != 4*time.Second {
		t.Errorf("times = %v", times)
	}
}

func TestPacketWriter(t *testing.T) {
	if _, err := newPacketWriter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("newPacketWriter(xml) error = nil, want error")
	}

	var buf bytes.Buffer
	w, err := newPacketWriter(&buf, "json")
	if err != nil {
		t.Fatalf("newPacketWriter() error = %v", err)
	}
	for _, p := range protocol.SamplePackets() {
		if err := w.write(p, time.Time{}); err != nil {
			t.Fatalf("write() error = %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d JSON lines, want 4", len(lines))
	}
	if !strings.Contains(lines[1], `"id_char":"B"`) {
		t.Errorf("line 1 = %s, want packet B", lines[1])
	}
}

func TestLogPackets_Filter(t *testing.T) {
	if _, ok := logPackets("test", "").(protocol.HandlerFunc); !ok {
		t.Error("logPackets() without filter should log every packet directly")
	}
	if _, ok := logPackets("test", "AB").(*protocol.Mux); !ok {
		t.Error("logPackets() with filter should route through a Mux")
	}
}
