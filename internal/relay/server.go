package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"github.com/muurk/wccp/internal/discovery"
	"github.com/muurk/wccp/internal/link"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/metrics"
	"github.com/muurk/wccp/internal/protocol"
	"github.com/muurk/wccp/internal/version"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Sender writes packets to the link behind the relay.
type Sender interface {
	Send(p *protocol.Packet) error
	Writable() bool
}

// Config holds the relay configuration.
type Config struct {
	Listen    string // host:port, e.g. ":8420"
	Advertise bool   // Announce over mDNS
	Instance  string // mDNS instance name, defaults to "wccp-<hostname>"
	Source    string // Source name reported to clients
}

// Server streams decoded packets to websocket clients and exposes metrics.
type Server struct {
	config   Config
	hub      *hub
	metrics  *metrics.Metrics
	sender   Sender
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a relay. m may be nil, in which case the relay keeps its own
// metrics. sender may be nil for read-only sources.
func New(config Config, m *metrics.Metrics, sender Sender) *Server {
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		config:  config,
		hub:     newHub(m),
		metrics: m,
		sender:  sender,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser dashboards are served from anywhere on the LAN.
				return true
			},
		},
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", m.Handler())
	return s
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int { return s.hub.count() }

// Publish sends a received packet to every client and counts it.
func (s *Server) Publish(r link.Received) error {
	s.metrics.ObservePacket(r.Packet)

	msg, err := NewPacketMessage(r.Packet, r.At)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.hub.broadcast(data)
	return nil
}

// Run serves HTTP on the configured address and publishes every packet from
// packets until ctx is cancelled or packets is closed. The server is then
// shut down gracefully.
func (s *Server) Run(ctx context.Context, packets <-chan link.Received) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, listener, packets)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener, packets <-chan link.Received) error {
	httpServer := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := listener.Addr().String()
	logging.Info("Relay listening",
		zap.String("addr", addr),
		zap.String("source", s.config.Source),
	)

	if s.config.Advertise {
		mdns, err := s.advertise(listener.Addr())
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer mdns.Shutdown()
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			logging.Info("Shutdown requested, stopping relay...")
			break loop

		case r, ok := <-packets:
			if !ok {
				logging.Info("Packet source finished")
				packets = nil
				continue
			}
			if err := s.Publish(r); err != nil {
				logging.Warn("Failed to publish packet", zap.Error(err))
			}

		case err := <-errChan:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = err
			}
			break loop
		}
	}

	s.shutdown(httpServer)
	return runErr
}

func (s *Server) shutdown(httpServer *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not closed by Shutdown.
	s.hub.closeAll()

	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		_ = httpServer.Close()
	}
	logging.Info("Relay stopped")
	logging.Sync()
}

func (s *Server) advertise(addr net.Addr) (*zeroconf.Server, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("cannot advertise %s", addr)
	}

	instance := s.config.Instance
	if instance == "" {
		instance = defaultInstance()
	}

	txt := []string{
		"source=" + s.config.Source,
		"version=" + version.Version,
		"path=/ws",
	}
	server, err := zeroconf.Register(instance, discovery.ServiceType, discovery.ServiceDomain, tcp.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Relay advertised",
		zap.String("instance", instance),
		zap.String("service", discovery.ServiceType),
		zap.Int("port", tcp.Port),
	)
	return server, nil
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "wccp"
	}
	return "wccp-" + host
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Failed to upgrade websocket connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := s.hub.register(conn, r.RemoteAddr)
	s.hub.sendJSON(c, Hello{
		Type:     TypeHello,
		ClientID: c.id,
		Source:   s.config.Source,
		Version:  version.Version,
		Writable: s.writable(),
	})

	go s.hub.writePump(c)
	s.hub.readPump(c, s.handleRequest)
}

func (s *Server) writable() bool {
	return s.sender != nil && s.sender.Writable()
}

// handleRequest sends a client-supplied packet to the source.
func (s *Server) handleRequest(c *client, data []byte) {
	reply := Reply{Type: TypeAck}

	p, err := decodeRequest(data)
	switch {
	case err != nil:
		reply = Reply{Type: TypeError, Error: err.Error()}
	case !s.writable():
		reply = Reply{Type: TypeError, Error: link.ErrNotWritable.Error()}
	default:
		if err := s.sender.Send(p); err != nil {
			reply = Reply{Type: TypeError, Error: err.Error()}
		} else {
			logging.Info("Packet sent for relay client",
				zap.String("client_id", c.id),
				zap.String("packet", p.Summary()),
			)
		}
	}

	s.hub.sendJSON(c, reply)
}

type health struct {
	Status  string       `json:"status"`
	Clients int          `json:"clients"`
	Source  string       `json:"source"`
	Build   version.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Clients: s.hub.count(),
		Source:  s.config.Source,
		Build:   version.Get(),
	})
}
