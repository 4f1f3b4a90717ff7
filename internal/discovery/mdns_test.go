package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func serviceEntry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  ServiceType,
			Domain:   ServiceDomain,
		},
		HostName: host,
		Port:     port,
		AddrIPv4: v4,
		AddrIPv6: v6,
		Text:     txt,
	}
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantIP     string
		wantPort   int
		wantSource string
	}{
		{
			name: "relay with IPv4",
			entry: serviceEntry("wccp-ground", "ground.local.", 8420,
				[]net.IP{net.ParseIP("192.168.4.16")}, nil,
				"source=/dev/ttyUSB0", "version=v0.3.0", "path=/ws"),
			wantIP:     "192.168.4.16",
			wantPort:   8420,
			wantSource: "/dev/ttyUSB0",
		},
		{
			name: "custom port",
			entry: serviceEntry("wccp-bench", "bench.local.", 9000,
				[]net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
		},
		{
			name: "no port specified (should default to 8420)",
			entry: serviceEntry("wccp-bench", "bench.local.", 0,
				[]net.IP{net.ParseIP("172.16.0.1")}, nil),
			wantIP:   "172.16.0.1",
			wantPort: DefaultPort,
		},
		{
			name: "IPv6 only relay",
			entry: serviceEntry("wccp-v6", "v6.local.", 8420,
				nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 8420,
		},
		{
			name: "both IPv4 and IPv6 (should prefer IPv4)",
			entry: serviceEntry("wccp-dual", "dual.local.", 8420,
				[]net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "192.168.1.50",
			wantPort: 8420,
		},
		{
			name:    "no instance name",
			entry:   serviceEntry("", "x.local.", 8420, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "no IP address",
			entry:   serviceEntry("wccp-ghost", "ghost.local.", 8420, nil, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if relay != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", relay)
				}
				return
			}
			if relay == nil {
				t.Fatal("parseServiceEntry() = nil, want relay")
			}

			if relay.Instance != tt.entry.Instance {
				t.Errorf("relay.Instance = %v, want %v", relay.Instance, tt.entry.Instance)
			}
			if relay.IP != tt.wantIP {
				t.Errorf("relay.IP = %v, want %v", relay.IP, tt.wantIP)
			}
			if relay.Port != tt.wantPort {
				t.Errorf("relay.Port = %v, want %v", relay.Port, tt.wantPort)
			}
			if relay.Source != tt.wantSource {
				t.Errorf("relay.Source = %q, want %q", relay.Source, tt.wantSource)
			}
			if relay.Hostname != tt.entry.HostName {
				t.Errorf("relay.Hostname = %v, want %v", relay.Hostname, tt.entry.HostName)
			}
			if time.Since(relay.DiscoveredAt) > time.Second {
				t.Errorf("relay.DiscoveredAt is not recent: %v", relay.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := serviceEntry("wccp-ground", "ground.local.", 8420,
		[]net.IP{net.ParseIP("192.168.4.16")}, nil,
		"source=capture.bin", "flag", "version=v0.3.0", "=orphan", "path=/stream")

	relay := parseServiceEntry(entry)
	if relay == nil {
		t.Fatal("parseServiceEntry() = nil, want relay")
	}

	expected := map[string]string{
		"source":  "capture.bin",
		"flag":    "", // Key without value
		"version": "v0.3.0",
		"path":    "/stream",
	}
	if len(relay.Metadata) != len(expected) {
		t.Errorf("relay.Metadata has %d entries, want %d", len(relay.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := relay.Metadata[key]; !ok {
			t.Errorf("relay.Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("relay.Metadata[%q] = %q, want %q", key, got, want)
		}
	}

	if relay.Version != "v0.3.0" {
		t.Errorf("relay.Version = %q", relay.Version)
	}
	if got := relay.WebSocketURL(); got != "ws://192.168.4.16:8420/stream" {
		t.Errorf("WebSocketURL() = %q", got)
	}
}

func TestRelayURLs(t *testing.T) {
	tests := []struct {
		relay   Relay
		wantWS  string
		wantMet string
	}{
		{
			relay:   Relay{Instance: "a", IP: "10.0.0.2", Port: 8420},
			wantWS:  "ws://10.0.0.2:8420/ws",
			wantMet: "http://10.0.0.2:8420/metrics",
		},
		{
			relay:   Relay{Instance: "b", IP: "fe80::1", Port: 9000, Metadata: map[string]string{"path": "/live"}},
			wantWS:  "ws://[fe80::1]:9000/live",
			wantMet: "http://[fe80::1]:9000/metrics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.relay.Instance, func(t *testing.T) {
			if got := tt.relay.WebSocketURL(); got != tt.wantWS {
				t.Errorf("WebSocketURL() = %q, want %q", got, tt.wantWS)
			}
			if got := tt.relay.MetricsURL(); got != tt.wantMet {
				t.Errorf("MetricsURL() = %q, want %q", got, tt.wantMet)
			}
		})
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()

	if scanner == nil {
		t.Fatal("NewScanner() = nil, want scanner")
	}
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}
