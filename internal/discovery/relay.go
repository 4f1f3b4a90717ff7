package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Relay is a wccp relay found on the network.
type Relay struct {
	// Instance is the advertised service instance, e.g. "wccp-groundstation"
	Instance string

	// Hostname is the mDNS hostname (e.g., "groundstation.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when the relay has no IPv4 address
	IP string

	Port int

	// Source is the device or capture the relay reads from
	Source string

	Version string

	// Metadata holds every TXT record, including source and version
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (r *Relay) String() string {
	return fmt.Sprintf("%s at %s (source %s)", r.Instance, r.Addr(), r.Source)
}

// Addr returns host:port for dialing.
func (r *Relay) Addr() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// WebSocketURL returns the packet stream URL of the relay.
func (r *Relay) WebSocketURL() string {
	path := r.Metadata["path"]
	if path == "" {
		path = "/ws"
	}
	return "ws://" + r.Addr() + path
}

// MetricsURL returns the Prometheus endpoint of the relay.
func (r *Relay) MetricsURL() string {
	return "http://" + r.Addr() + "/metrics"
}
