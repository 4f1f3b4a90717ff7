// Package export writes packet series as CSV.
//
// Each file holds one series (unit, component and packet id). Columns are
// the arrival time, milliseconds since the first row, the packet header,
// then one column per entry path: "Tp" for a top-level entry, "St.Sx" for
// a struct member and "Sp.Px" for an entry of a nested packet.
package export
