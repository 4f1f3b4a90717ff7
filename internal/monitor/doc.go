// Package monitor implements the live packet dashboard.
//
// The dashboard shows three panes:
//
//   - Packets: the unit → component → packet id tree in first-seen order,
//     with the time of the newest packet on each row
//   - Packet: the packet under the cursor of the selected id
//   - Help: the key bindings (folded into the footer on narrow terminals)
//
// Each packet id keeps a cursor that follows the newest packet until the
// user steps back with k or K; J returns to following.
//
// Packets arrive on a channel fed by link.Source.Run. The channel closing
// marks the source as finished; the dashboard stays up with what was
// received unless Options.QuitWhenDone is set.
//
// The f key edits the packet id filter in place. Packets already received
// stay in the tree; the new filter applies to later arrivals.
package monitor
