package protocol

import (
	"encoding/binary"
	"math"

	"github.com/x448/float16"
)

// Entry type tags. Ranges are inclusive: short bytes occupy 8-15, multi-byte
// integers 16-31 and short integers 32-63.
const (
	TagNull       uint8 = 0
	TagStruct     uint8 = 1
	TagPacket     uint8 = 2
	TagBytesLong  uint8 = 3
	TagFloatZero  uint8 = 4
	TagFloat16    uint8 = 5
	TagFloat32    uint8 = 6
	TagFloat64    uint8 = 7
	TagBytesShort uint8 = 8
	TagIntMulti   uint8 = 16
	TagIntShort   uint8 = 32

	tagMask     = 0x3F
	tagLowMask  = 0x07
	tagIntSign  = 0x08
	tagIntValue = 0x1F
)

const (
	// MaxShortInt is the largest integer embedded directly in the type tag.
	MaxShortInt = 31
	// MaxShortBytes is the longest byte string whose length fits in the tag.
	MaxShortBytes = 7
	// MaxBytesLen is the longest byte string an entry can carry.
	MaxBytesLen = 255
)

// Kind is the value class selected by an entry's type tag.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBytes
	KindStruct
	KindPacket
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBytes:
		return "bytes"
	case KindStruct:
		return "struct"
	case KindPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// KindOf maps a 6-bit type tag to its kind.
func KindOf(tag uint8) Kind {
	tag &= tagMask
	switch {
	case tag >= TagIntMulti:
		return KindInt
	case tag >= TagBytesShort, tag == TagBytesLong:
		return KindBytes
	case tag >= TagFloatZero:
		return KindFloat
	case tag == TagPacket:
		return KindPacket
	case tag == TagStruct:
		return KindStruct
	default:
		return KindNull
	}
}

// Entry is a single named, typed value. The zero value is a null entry
// named "@`".
//
// Scalar kinds keep their wire payload; struct entries own their children and
// packet entries own their nested packet, both serialized on Encode.
type Entry struct {
	name    Name
	tag     uint8
	payload []byte
	entries []Entry
	packet  *Packet
}

// Integer covers the types accepted by NewEnum.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func newEntry(name string) Entry {
	return Entry{name: ParseName(name)}
}

func NewNull(name string) Entry {
	return newEntry(name)
}

func NewBool(name string, v bool) Entry {
	e := newEntry(name)
	e.SetBool(v)
	return e
}

func NewInt(name string, v int64) Entry {
	e := newEntry(name)
	e.SetInt(v)
	return e
}

func NewUint(name string, v uint64) Entry {
	e := newEntry(name)
	e.SetUint(v)
	return e
}

// NewEnum stores any integer-backed value (enumerations, ids) as an integer
// entry.
func NewEnum[T Integer](name string, v T) Entry {
	e := newEntry(name)
	if v < 0 {
		e.SetInt(int64(v))
	} else {
		e.SetUint(uint64(v))
	}
	return e
}

func NewFloat16(name string, v float32) Entry {
	e := newEntry(name)
	e.SetFloat16(v)
	return e
}

func NewFloat32(name string, v float32) Entry {
	e := newEntry(name)
	e.SetFloat32(v)
	return e
}

func NewFloat64(name string, v float64) Entry {
	e := newEntry(name)
	e.SetFloat64(v)
	return e
}

func NewBytes(name string, v []byte) Entry {
	e := newEntry(name)
	e.SetBytes(v)
	return e
}

func NewString(name string, v string) Entry {
	e := newEntry(name)
	e.SetString(v)
	return e
}

func NewStruct(name string, entries ...Entry) Entry {
	e := newEntry(name)
	e.SetStruct(entries...)
	return e
}

// NewPacketEntry nests p inside an entry. The entry owns p from then on.
func NewPacketEntry(name string, p *Packet) Entry {
	e := newEntry(name)
	e.SetPacket(p)
	return e
}

func (e *Entry) reset(tag uint8, payload []byte) {
	e.tag = tag
	e.payload = payload
	e.entries = nil
	e.packet = nil
}

// SetName renames the entry without touching its value.
func (e *Entry) SetName(name string) {
	e.name = ParseName(name)
}

func (e *Entry) SetNull() {
	e.reset(TagNull, nil)
}

func (e *Entry) SetBool(v bool) {
	if v {
		e.SetUint(1)
	} else {
		e.SetUint(0)
	}
}

func (e *Entry) SetInt(v int64) {
	if v >= 0 {
		e.setInteger(uint64(v), false)
		return
	}
	// -(v+1)+1 avoids overflowing on math.MinInt64
	e.setInteger(uint64(-(v+1))+1, true)
}

func (e *Entry) SetUint(v uint64) {
	e.setInteger(v, false)
}

// setInteger applies the integer policy: non-negative values up to 31 are
// embedded in the tag, everything else is stored as the minimal number of
// little-endian magnitude bytes.
func (e *Entry) setInteger(magnitude uint64, negative bool) {
	if !negative && magnitude <= MaxShortInt {
		e.reset(TagIntShort|uint8(magnitude), nil)
		return
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], magnitude)
	n := len(buf)
	for n > 1 && buf[n-1] == 0 {
		n--
	}

	tag := TagIntMulti | uint8(n-1)
	if negative {
		tag |= tagIntSign
	}
	e.reset(tag, append([]byte(nil), buf[:n]...))
}

// SetFloat16 stores v at half precision. Zero always collapses to the
// payload-less zero tag.
func (e *Entry) SetFloat16(v float32) {
	if v == 0 {
		e.reset(TagFloatZero, nil)
		return
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, float16.Fromfloat32(v).Bits())
	e.reset(TagFloat16, buf)
}

func (e *Entry) SetFloat32(v float32) {
	if v == 0 {
		e.reset(TagFloatZero, nil)
		return
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	e.reset(TagFloat32, buf)
}

func (e *Entry) SetFloat64(v float64) {
	if v == 0 {
		e.reset(TagFloatZero, nil)
		return
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	e.reset(TagFloat64, buf)
}

// SetBytes copies v into the entry. Strings longer than MaxBytesLen are kept
// but fail to encode.
func (e *Entry) SetBytes(v []byte) {
	buf := append([]byte{}, v...)
	if len(buf) <= MaxShortBytes {
		e.reset(TagBytesShort|uint8(len(buf)), buf)
		return
	}
	e.reset(TagBytesLong, buf)
}

func (e *Entry) SetString(v string) {
	e.SetBytes([]byte(v))
}

func (e *Entry) SetStruct(entries ...Entry) {
	e.reset(TagStruct, nil)
	e.entries = append([]Entry{}, entries...)
}

func (e *Entry) SetPacket(p *Packet) {
	e.reset(TagPacket, nil)
	e.packet = p.clone()
}

func (e Entry) Name() Name { return e.name }

// Tag returns the 6-bit type tag.
func (e Entry) Tag() uint8 { return e.tag }

func (e Entry) Kind() Kind { return KindOf(e.tag) }

func (e Entry) IsNull() bool   { return e.Kind() == KindNull }
func (e Entry) IsInt() bool    { return e.Kind() == KindInt }
func (e Entry) IsFloat() bool  { return e.Kind() == KindFloat }
func (e Entry) IsBytes() bool  { return e.Kind() == KindBytes }
func (e Entry) IsStruct() bool { return e.Kind() == KindStruct }
func (e Entry) IsPacket() bool { return e.Kind() == KindPacket }

// IsNegative reports whether the entry holds a negative integer.
func (e Entry) IsNegative() bool {
	return e.tag >= TagIntMulti && e.tag < TagIntShort && e.tag&tagIntSign != 0
}

func (e Entry) magnitude() uint64 {
	var buf [8]byte
	copy(buf[:], e.payload)
	return binary.LittleEndian.Uint64(buf[:])
}

// Int returns the integer value, or 0 when the entry is not an integer.
// Magnitudes above math.MaxInt64 wrap; use Uint for those.
func (e Entry) Int() int64 {
	switch {
	case e.tag >= TagIntShort:
		return int64(e.tag & tagIntValue)
	case e.tag >= TagIntMulti:
		if e.IsNegative() {
			return -int64(e.magnitude())
		}
		return int64(e.magnitude())
	default:
		return 0
	}
}

// Uint returns the value of a non-negative integer entry, or 0.
func (e Entry) Uint() uint64 {
	switch {
	case e.tag >= TagIntShort:
		return uint64(e.tag & tagIntValue)
	case e.tag >= TagIntMulti && !e.IsNegative():
		return e.magnitude()
	default:
		return 0
	}
}

func (e Entry) Bool() bool {
	return e.IsInt() && (e.Uint() != 0 || e.IsNegative())
}

// Float returns the floating point value at the stored precision, or 0.
func (e Entry) Float() float64 {
	switch e.tag {
	case TagFloat16:
		bits := binary.LittleEndian.Uint16(e.payload)
		return float64(float16.Frombits(bits).Float32())
	case TagFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(e.payload)))
	case TagFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(e.payload))
	default:
		return 0
	}
}

// Bytes returns a copy of a byte string entry, or nil.
func (e Entry) Bytes() []byte {
	if !e.IsBytes() {
		return nil
	}
	return append([]byte{}, e.payload...)
}

// Text returns a byte string entry as a string, or "".
func (e Entry) Text() string {
	if !e.IsBytes() {
		return ""
	}
	return string(e.payload)
}

// Struct returns the children of a struct entry, or nil.
func (e Entry) Struct() []Entry {
	if !e.IsStruct() {
		return nil
	}
	return append([]Entry{}, e.entries...)
}

// Packet returns a copy of the nested packet of a packet entry, or nil.
// Changing the copy's header or entry list leaves e unchanged.
func (e Entry) Packet() *Packet {
	if !e.IsPacket() {
		return nil
	}
	return e.packet.clone()
}
