package protocol

// SampleEntries returns the reference entry list: one entry of every kind,
// a struct and a nested packet.
func SampleEntries() []Entry {
	sub := NewTelemetry('P', 0x55, WithEntries(
		NewInt("Px", 0xFF00FF00),
		NewFloat32("Py", 1.4142),
	))
	return []Entry{
		NewNull("Nu"),
		NewInt("Ix", 1),
		NewInt("Iy", 1234567890),
		NewInt("Iz", -1234567890),
		NewFloat16("Fx", 1.25),
		NewFloat32("Fy", 4.56),
		NewFloat64("Fz", 7.89),
		NewBytes("Bx", []byte("ABC")),
		NewString("By", "abcdefghijk"),
		NewStruct("St",
			NewInt("Sx", 54321),
			NewFloat32("Sy", 3.1415),
		),
		NewPacketEntry("Sp", sub),
	}
}

// SamplePackets returns the four reference packets, local and remote
// variants of a command and a telemetry packet, all on component 0x11 and
// carrying SampleEntries. Their frames concatenated form the reference
// capture written by `wccp sample`.
func SamplePackets() []*Packet {
	remote := Remote(0x22, 0x33, 12345)
	return []*Packet{
		NewCommand('A', 0x11, WithEntries(SampleEntries()...)),
		NewCommand('B', 0x11, remote, WithEntries(SampleEntries()...)),
		NewTelemetry('C', 0x11, WithEntries(SampleEntries()...)),
		NewTelemetry('D', 0x11, remote, WithEntries(SampleEntries()...)),
	}
}
