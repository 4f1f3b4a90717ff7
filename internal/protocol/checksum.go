package protocol

import "github.com/sigurn/crc8"

// CRC-8 with polynomial 0x07, zero init, no reflection and no final xor.
var crcTable = crc8.MakeTable(crc8.CRC8)

// Checksum computes the frame checksum of an encoded packet.
func Checksum(data []byte) uint8 {
	return crc8.Checksum(data, crcTable)
}

// UpdateChecksum continues a checksum over more data.
func UpdateChecksum(crc uint8, data []byte) uint8 {
	return crc8.Update(crc, data, crcTable)
}
