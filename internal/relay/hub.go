package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/metrics"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048

	// Messages queued per client before new ones are dropped
	sendQueue = 256
)

type client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	send       chan []byte
}

// hub tracks connected clients and fans messages out to them.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	metrics *metrics.Metrics
}

func newHub(m *metrics.Metrics) *hub {
	return &hub{
		clients: make(map[string]*client),
		metrics: m,
	}
}

func (h *hub) register(conn *websocket.Conn, remoteAddr string) *client {
	c := &client{
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, sendQueue),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.metrics.RelayClientConnected()
	logging.Info("Relay client connected",
		zap.String("client_id", c.id),
		zap.String("remote_addr", remoteAddr),
	)
	return c
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.metrics.RelayClientDisconnected()
		logging.Info("Relay client disconnected",
			zap.String("client_id", c.id),
			zap.String("remote_addr", c.remoteAddr),
		)
	}
}

// broadcast queues data for every client. Clients whose queue is full miss
// the message.
func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.metrics.RelayMessageDropped()
			logging.Warn("Relay client too slow, message dropped",
				zap.String("client_id", c.id),
			)
		}
	}
}

// sendJSON queues v for a single client.
func (h *hub) sendJSON(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error("Failed to marshal relay message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.metrics.RelayMessageDropped()
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll sends a close frame to every client.
func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down")
	for _, c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}

// writePump writes queued messages and pings until the queue is closed.
func (h *hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("Relay write failed",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
				return
			}
			h.metrics.RelayMessageSent()

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client requests until the connection fails, passing each
// text message to handle.
func (h *hub) readPump(c *client, handle func(*client, []byte)) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("Relay client closed unexpectedly",
					zap.String("client_id", c.id),
					zap.Error(err),
				)
			}
			return
		}
		if messageType == websocket.TextMessage {
			handle(c, data)
		}
	}
}
