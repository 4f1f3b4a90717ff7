// Package history keeps received packets for browsing.
//
// Packets are grouped by origin unit, component and packet id. Each group
// (a series) has a cursor that either follows the newest packet or pins an
// older one, so the monitor can step back through past values while new
// packets keep arriving.
package history
