// Package discovery finds wccp relays on the local network over mDNS.
//
// Relays started with advertising enabled register a "_wccp._tcp" service.
// Their TXT records carry the packet source they read from, the relay
// version and the websocket path.
//
// # Usage Example
//
//	relays, err := discovery.NewScanner().Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range relays {
//	    fmt.Println(r.Instance, r.WebSocketURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Relays must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
