// Package ui renders wccp command output in the terminal.
//
// Commands that print and exit (decode, log, export, discover) write
// through a Printer:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning or failure box with details
//   - Packets: one block per packet with its entries indented
//
// The interactive monitor shares the styles and packet renderers defined
// here.
//
// Example:
//
//	pr := ui.NewPrinter(os.Stdout)
//	pr.PrintHeader("Decode", "wccp decode data.bin",
//	    ui.Detail{Key: "Source", Value: "data.bin"})
//	pr.PrintPacket(r.At, r.Packet)
//	pr.PrintSuccess("Decode complete", ui.Detail{Key: "Packets", Value: "42"})
//
// Lipgloss drops colors when stdout is not a terminal, so output piped to a
// file stays plain text.
package ui
