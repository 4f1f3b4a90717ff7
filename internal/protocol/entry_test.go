package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"testing"
)

func mustEncodeEntry(t *testing.T, e Entry) []byte {
	t.Helper()
	buf, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", e.Name(), err)
	}
	return buf
}

func roundTripEntry(t *testing.T, e Entry) Entry {
	t.Helper()
	buf := mustEncodeEntry(t, e)
	got, n, err := DecodeEntry(buf)
	if err != nil {
		t.Fatalf("DecodeEntry(%x) error = %v", buf, err)
	}
	if n != len(buf) {
		t.Errorf("DecodeEntry consumed %d bytes, want %d", n, len(buf))
	}
	if got.Name() != e.Name() {
		t.Errorf("name = %s, want %s", got.Name(), e.Name())
	}
	if got.Tag() != e.Tag() {
		t.Errorf("tag = %d, want %d", got.Tag(), e.Tag())
	}
	return got
}

func TestEntryEncode_Golden(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"null", NewNull("Nu"), "0e15"},
		{"short int", NewInt("Ix", 1), "2998"},
		{"multi-byte int", NewInt("Iy", 1234567890), "6959d2029649"},
		{"negative int", NewInt("Iz", -1234567890), "697ad2029649"},
		{"float16", NewFloat16("Fx", 1.25), "a618003d"},
		{"float zero", NewFloat32("Fy", 0), "8619"},
		{"short bytes", NewBytes("Bx", []byte("ABC")), "6238414243"},
		{"long bytes", NewString("By", "abcdefghijk"), "62190b6162636465666768696a6b"},
		{
			"struct",
			NewStruct("St", NewInt("Sx", 54321), NewFloat32("Sy", 3.1415)),
			"33140b335831d4d319560e4940",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hex.EncodeToString(mustEncodeEntry(t, tt.entry))
			if got != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetInt_MinimalWidth(t *testing.T) {
	tests := []struct {
		name       string
		value      int64
		wantTag    uint8
		payloadLen int
	}{
		{"zero", 0, TagIntShort, 0},
		{"one", 1, TagIntShort | 1, 0},
		{"largest short", 31, TagIntShort | 31, 0},
		{"smallest multi-byte", 32, TagIntMulti, 1},
		{"one byte", 255, TagIntMulti, 1},
		{"two bytes", 256, TagIntMulti | 1, 2},
		{"four bytes", 1234567890, TagIntMulti | 3, 4},
		{"negative four bytes", -1234567890, TagIntMulti | tagIntSign | 3, 4},
		{"minus one", -1, TagIntMulti | tagIntSign, 1},
		{"max int64", math.MaxInt64, TagIntMulti | 7, 8},
		{"min int64", math.MinInt64, TagIntMulti | tagIntSign | 7, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewInt("Ix", tt.value)
			if e.Tag() != tt.wantTag {
				t.Errorf("tag = %d, want %d", e.Tag(), tt.wantTag)
			}

			buf := mustEncodeEntry(t, e)
			if got := len(buf) - EntryHeaderLen; got != tt.payloadLen {
				t.Errorf("payload length = %d, want %d", got, tt.payloadLen)
			}

			got := roundTripEntry(t, e)
			if !got.IsInt() {
				t.Fatalf("kind = %s, want int", got.Kind())
			}
			if got.Int() != tt.value {
				t.Errorf("Int() = %d, want %d", got.Int(), tt.value)
			}
			if got.IsNegative() != (tt.value < 0) {
				t.Errorf("IsNegative() = %v, want %v", got.IsNegative(), tt.value < 0)
			}
		})
	}
}

func TestSetUint_Large(t *testing.T) {
	e := roundTripEntry(t, NewUint("Ux", math.MaxUint64))
	if e.Uint() != math.MaxUint64 {
		t.Errorf("Uint() = %d, want %d", e.Uint(), uint64(math.MaxUint64))
	}
	if e.IsNegative() {
		t.Error("IsNegative() = true, want false")
	}
	if v, ok := e.Value().(uint64); !ok || v != math.MaxUint64 {
		t.Errorf("Value() = %v, want uint64 max", e.Value())
	}
}

func TestFloatZeroCollapse(t *testing.T) {
	entries := []Entry{
		NewFloat16("Fx", 0),
		NewFloat32("Fy", 0),
		NewFloat64("Fz", 0),
	}

	for _, e := range entries {
		t.Run(e.Name().String(), func(t *testing.T) {
			if e.Tag() != TagFloatZero {
				t.Errorf("tag = %d, want %d", e.Tag(), TagFloatZero)
			}
			if buf := mustEncodeEntry(t, e); len(buf) != EntryHeaderLen {
				t.Errorf("encoded length = %d, want %d", len(buf), EntryHeaderLen)
			}
			got := roundTripEntry(t, e)
			if !got.IsFloat() || got.Float() != 0 {
				t.Errorf("decoded = %s %v, want float 0", got.Kind(), got.Float())
			}
		})
	}
}

func TestEntryRoundTrip(t *testing.T) {
	sub := NewTelemetry('P', 0x55, WithEntries(
		NewInt("Px", 0xFF00FF00),
		NewFloat32("Py", 1.4142),
	))

	tests := []struct {
		name   string
		entry  Entry
		verify func(t *testing.T, e Entry)
	}{
		{
			name:  "null",
			entry: NewNull("Nu"),
			verify: func(t *testing.T, e Entry) {
				if !e.IsNull() {
					t.Errorf("kind = %s, want null", e.Kind())
				}
			},
		},
		{
			name:  "bool",
			entry: NewBool("Bo", true),
			verify: func(t *testing.T, e Entry) {
				if !e.Bool() {
					t.Error("Bool() = false, want true")
				}
			},
		},
		{
			name:  "float16",
			entry: NewFloat16("Fx", 1.25),
			verify: func(t *testing.T, e Entry) {
				if e.Float() != 1.25 {
					t.Errorf("Float() = %v, want 1.25", e.Float())
				}
			},
		},
		{
			name:  "float32",
			entry: NewFloat32("Fy", 4.56),
			verify: func(t *testing.T, e Entry) {
				if e.Float() != float64(float32(4.56)) {
					t.Errorf("Float() = %v, want %v", e.Float(), float32(4.56))
				}
			},
		},
		{
			name:  "float64",
			entry: NewFloat64("Fz", 7.89),
			verify: func(t *testing.T, e Entry) {
				if e.Float() != 7.89 {
					t.Errorf("Float() = %v, want 7.89", e.Float())
				}
			},
		},
		{
			name:  "negative float16",
			entry: NewFloat16("Fn", -2.5),
			verify: func(t *testing.T, e Entry) {
				if e.Float() != -2.5 {
					t.Errorf("Float() = %v, want -2.5", e.Float())
				}
			},
		},
		{
			name:  "short bytes",
			entry: NewBytes("Bx", []byte{0x00, 0xFF, 0x10}),
			verify: func(t *testing.T, e Entry) {
				if !bytes.Equal(e.Bytes(), []byte{0x00, 0xFF, 0x10}) {
					t.Errorf("Bytes() = %x", e.Bytes())
				}
			},
		},
		{
			name:  "empty bytes",
			entry: NewBytes("Be", nil),
			verify: func(t *testing.T, e Entry) {
				if !e.IsBytes() || len(e.Bytes()) != 0 {
					t.Errorf("decoded = %s %x, want empty bytes", e.Kind(), e.Bytes())
				}
			},
		},
		{
			name:  "long string",
			entry: NewString("By", "abcdefghijk"),
			verify: func(t *testing.T, e Entry) {
				if e.Text() != "abcdefghijk" {
					t.Errorf("Text() = %q", e.Text())
				}
			},
		},
		{
			name:  "max length bytes",
			entry: NewBytes("Bm", bytes.Repeat([]byte{0xAB}, MaxBytesLen)),
			verify: func(t *testing.T, e Entry) {
				if len(e.Bytes()) != MaxBytesLen {
					t.Errorf("len(Bytes()) = %d, want %d", len(e.Bytes()), MaxBytesLen)
				}
			},
		},
		{
			name: "nested struct",
			entry: NewStruct("St",
				NewInt("Sx", 54321),
				NewStruct("Sn", NewString("Na", "inner"), NewNull("Nb")),
				NewFloat32("Sy", 3.1415),
			),
			verify: func(t *testing.T, e Entry) {
				children := e.Struct()
				if len(children) != 3 {
					t.Fatalf("len(Struct()) = %d, want 3", len(children))
				}
				if children[0].Int() != 54321 {
					t.Errorf("Sx = %d, want 54321", children[0].Int())
				}
				inner := children[1].Struct()
				if len(inner) != 2 || inner[0].Text() != "inner" || !inner[1].IsNull() {
					t.Errorf("Sn = %v", inner)
				}
				if children[2].Float() != float64(float32(3.1415)) {
					t.Errorf("Sy = %v", children[2].Float())
				}
			},
		},
		{
			name:  "empty struct",
			entry: NewStruct("Se"),
			verify: func(t *testing.T, e Entry) {
				if !e.IsStruct() || len(e.Struct()) != 0 {
					t.Errorf("decoded = %s with %d children, want empty struct", e.Kind(), len(e.Struct()))
				}
			},
		},
		{
			name:  "sub-packet",
			entry: NewPacketEntry("Sp", sub),
			verify: func(t *testing.T, e Entry) {
				p := e.Packet()
				if p == nil {
					t.Fatal("Packet() = nil")
				}
				if !p.IsTelemetry() || p.ID != 'P' || p.Component != 0x55 {
					t.Errorf("sub-packet header = %s", p.Summary())
				}
				px, ok := p.Find("Px")
				if !ok || px.Uint() != 0xFF00FF00 {
					t.Errorf("Px = %v, %v", px.Uint(), ok)
				}
			},
		},
		{
			name:  "enum",
			entry: NewEnum("Md", testMode(3)),
			verify: func(t *testing.T, e Entry) {
				if testMode(e.Uint()) != 3 {
					t.Errorf("Uint() = %d, want 3", e.Uint())
				}
			},
		},
		{
			name:  "negative enum",
			entry: NewEnum("Mn", int8(-5)),
			verify: func(t *testing.T, e Entry) {
				if e.Int() != -5 {
					t.Errorf("Int() = %d, want -5", e.Int())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundTripEntry(t, tt.entry)
			if got.Kind() != tt.entry.Kind() {
				t.Errorf("kind = %s, want %s", got.Kind(), tt.entry.Kind())
			}
			tt.verify(t, got)
		})
	}
}

type testMode uint8

func TestSetter_ReplacesPreviousValue(t *testing.T) {
	e := NewStruct("Xx", NewInt("Ax", 1))
	e.SetString("hello")
	if e.Struct() != nil {
		t.Error("Struct() after SetString should be nil")
	}
	if e.Text() != "hello" {
		t.Errorf("Text() = %q, want hello", e.Text())
	}

	e.SetPacket(NewCommand('A', 1))
	if e.Text() != "" {
		t.Errorf("Text() after SetPacket = %q, want empty", e.Text())
	}

	e.SetInt(-7)
	if e.Packet() != nil {
		t.Error("Packet() after SetInt should be nil")
	}
	if e.Int() != -7 {
		t.Errorf("Int() = %d, want -7", e.Int())
	}

	e.SetNull()
	if !e.IsNull() || e.Int() != 0 {
		t.Errorf("after SetNull kind = %s, Int() = %d", e.Kind(), e.Int())
	}
}

func TestAccessor_KindMismatch(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"bytes", NewString("Bx", "abc")},
		{"float", NewFloat32("Fx", 1.5)},
		{"struct", NewStruct("St", NewInt("Sx", 1))},
		{"null", NewNull("Nu")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			if !e.IsInt() && (e.Int() != 0 || e.Uint() != 0 || e.Bool()) {
				t.Errorf("integer accessors on %s = %d/%d/%v", e.Kind(), e.Int(), e.Uint(), e.Bool())
			}
			if !e.IsFloat() && e.Float() != 0 {
				t.Errorf("Float() on %s = %v", e.Kind(), e.Float())
			}
			if !e.IsBytes() && (e.Bytes() != nil || e.Text() != "") {
				t.Errorf("byte accessors on %s = %x/%q", e.Kind(), e.Bytes(), e.Text())
			}
			if !e.IsStruct() && e.Struct() != nil {
				t.Errorf("Struct() on %s = %v", e.Kind(), e.Struct())
			}
			if e.Packet() != nil {
				t.Errorf("Packet() on %s = %v", e.Kind(), e.Packet())
			}
		})
	}
}

func TestEntryName(t *testing.T) {
	e := roundTripEntry(t, NewInt("ix", 1))
	if e.Name().String() != "Ix" {
		t.Errorf("Name() = %q, want Ix", e.Name())
	}
	if !e.Name().Matches("IX") || !e.Name().Matches("ix") {
		t.Error("Matches should ignore case")
	}
	if e.Name().Matches("Iy") {
		t.Error("Matches(Iy) = true")
	}
	if got := NewNull("").Name().String(); got != "@`" {
		t.Errorf("empty name = %q, want @`", got)
	}
}

func TestDecodeEntry_Errors(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncated},
		{"half header", []byte{0x29}, ErrTruncated},
		{"missing int payload", []byte{0x69, 0x59, 0xD2}, ErrTruncated},
		{"missing long bytes length", []byte{0x62, 0x19}, ErrTruncated},
		{"short long bytes", []byte{0x62, 0x19, 0x05, 'a'}, ErrTruncated},
		{"struct overruns buffer", []byte{0x33, 0x14, 0x0B, 0x33, 0x58}, ErrTruncated},
		{"struct zero length", []byte{0x33, 0x14, 0x00}, ErrMalformedHeader},
		{"struct child overruns struct", []byte{0x33, 0x14, 0x03, 0x69, 0x59}, ErrTruncated},
		{"sub-packet bad header", []byte{0x53, 0x10, 0x02, 0x41}, ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeEntry(tt.buf)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeEntry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{"bytes too long", NewBytes("Bx", make([]byte, MaxBytesLen+1)), ErrValueTooLong},
		{"nil sub-packet", NewPacketEntry("Sp", nil), ErrEmptySubPacket},
		{
			"nested bytes too long",
			NewStruct("St", NewString("Sx", string(make([]byte, 300)))),
			ErrValueTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.entry.Encode()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Encode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		tag  uint8
		want Kind
	}{
		{0, KindNull},
		{1, KindStruct},
		{2, KindPacket},
		{3, KindBytes},
		{4, KindFloat},
		{7, KindFloat},
		{8, KindBytes},
		{15, KindBytes},
		{16, KindInt},
		{31, KindInt},
		{32, KindInt},
		{63, KindInt},
	}

	for _, tt := range tests {
		if got := KindOf(tt.tag); got != tt.want {
			t.Errorf("KindOf(%d) = %s, want %s", tt.tag, got, tt.want)
		}
	}
}

func TestEntry_PacketOwnership(t *testing.T) {
	sub := NewTelemetry('P', 0x55, WithEntries(NewUint("Px", 1)))
	e := NewPacketEntry("Sp", sub)

	// Changes to the packet passed in do not reach the entry.
	sub.ID = 'Q'
	sub.Entries[0].SetUint(2)
	sub.Append(NewNull("Nx"))

	got := e.Packet()
	if got.ID != 'P' || len(got.Entries) != 1 || got.Entries[0].Uint() != 1 {
		t.Fatalf("entry packet changed through the caller's pointer: %s", got)
	}

	// Changes to a returned packet do not reach the entry either.
	got.Component = 0x66
	got.Entries[0].SetUint(3)
	got.Entries = append(got.Entries, NewNull("Ny"))

	again := e.Packet()
	if again.Component != 0x55 || len(again.Entries) != 1 || again.Entries[0].Uint() != 1 {
		t.Errorf("entry packet changed through Packet(): %s", again)
	}
	if again == got {
		t.Error("Packet() returned the same pointer twice")
	}
}
