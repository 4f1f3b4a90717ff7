// Package capture reads and writes packet logs.
//
// A packet log is a flat sequence of records, each holding one encoded
// packet without framing:
//
//	[0-3]  millis   u32 little-endian, logger clock at reception
//	[4]    length   packet length in bytes
//	[5..]  packet   length bytes
//
// A zero timestamp or zero length marks the end of usable data. Raw serial
// captures (framed byte streams) are handled by the link package instead.
package capture
