// Package metrics exposes packet and framing counters in the Prometheus
// format.
//
// Framer counters are read at scrape time from each watched source, so the
// framer itself stays free of Prometheus types. Packet counters are labeled
// by unit, component, packet id and kind.
package metrics
