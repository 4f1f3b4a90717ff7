package protocol

import (
	"github.com/muurk/wccp/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Handler consumes decoded packets.
type Handler interface {
	HandlePacket(p *Packet)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(p *Packet)

func (f HandlerFunc) HandlePacket(p *Packet) { f(p) }

// Mux routes packets to handlers registered by packet kind and id. Packets
// without a registered handler go to the fallback, if any.
type Mux struct {
	routes   map[muxKey]Handler
	fallback Handler
}

type muxKey struct {
	kind PacketKind
	id   uint8
}

func NewMux() *Mux {
	return &Mux{routes: make(map[muxKey]Handler)}
}

// Handle registers h for packets of the given kind and id.
func (m *Mux) Handle(kind PacketKind, id uint8, h Handler) {
	m.routes[muxKey{kind, id & MaxPacketID}] = h
}

// Fallback sets the handler for unrouted packets.
func (m *Mux) Fallback(h Handler) {
	m.fallback = h
}

func (m *Mux) HandlePacket(p *Packet) {
	if h, ok := m.routes[muxKey{p.Kind, p.ID}]; ok {
		h.HandlePacket(p)
		return
	}
	if m.fallback != nil {
		m.fallback.HandlePacket(p)
	}
}

// LogPacket logs a decoded packet. Entry values are included at debug level.
func LogPacket(source string, p *Packet) {
	fields := []zap.Field{
		zap.String("source", source),
		zap.String("kind", p.Kind.String()),
		zap.String("id", idString(p.ID)),
		zap.Uint8("component", p.Component),
		zap.Uint8("origin", p.Origin),
		zap.Int("entries", len(p.Entries)),
	}
	if p.IsRemote() {
		fields = append(fields,
			zap.Uint8("dest", p.Dest),
			zap.Uint16("sequence", p.Sequence),
		)
	}

	if !logging.Enabled(zapcore.DebugLevel) {
		logging.Info("Packet received", fields...)
		return
	}

	for _, f := range p.Fields() {
		fields = append(fields, zap.Any(f.Path, f.Value))
	}
	logging.Debug("Packet received", fields...)
}
