package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/muurk/wccp/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wccp"

// StatsFunc reports the counters of a framer.
type StatsFunc func() protocol.FramerStats

// Metrics holds the Prometheus metrics of one process. Each instance has
// its own registry.
type Metrics struct {
	registry *prometheus.Registry

	packetsTotal *prometheus.CounterVec
	packetBytes  *prometheus.HistogramVec

	relayClients  prometheus.Gauge
	relaySent     prometheus.Counter
	relayDropped  prometheus.Counter
	relayAccepted prometheus.Counter

	framers *framerCollector
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		packetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "packets_total",
				Help:      "Validated packets received.",
			},
			[]string{"unit", "component", "packet_id", "kind"},
		),
		packetBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "packet_size_bytes",
				Help:      "Encoded size of received packets.",
				Buckets:   prometheus.LinearBuckets(16, 32, 8),
			},
			[]string{"kind"},
		),

		relayClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
		relayAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Websocket connections accepted.",
		}),
		relaySent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_sent_total",
			Help:      "Packet messages written to websocket clients.",
		}),
		relayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_dropped_total",
			Help:      "Packet messages dropped for slow websocket clients.",
		}),

		framers: newFramerCollector(),
	}

	m.registry.MustRegister(
		m.packetsTotal,
		m.packetBytes,
		m.relayClients,
		m.relayAccepted,
		m.relaySent,
		m.relayDropped,
		m.framers,
	)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WatchFramer exports the counters of a framer under the given source
// label. Watching the same source again replaces the previous function.
func (m *Metrics) WatchFramer(source string, stats StatsFunc) {
	m.framers.add(source, stats)
}

// ObservePacket counts a received packet.
func (m *Metrics) ObservePacket(p *protocol.Packet) {
	m.packetsTotal.WithLabelValues(
		strconv.Itoa(int(p.Origin)),
		strconv.Itoa(int(p.Component)),
		packetIDLabel(p.ID),
		p.Kind.String(),
	).Inc()

	if size, err := p.Size(); err == nil {
		m.packetBytes.WithLabelValues(p.Kind.String()).Observe(float64(size))
	}
}

func (m *Metrics) RelayClientConnected() {
	m.relayAccepted.Inc()
	m.relayClients.Inc()
}

func (m *Metrics) RelayClientDisconnected() {
	m.relayClients.Dec()
}

func (m *Metrics) RelayMessageSent() {
	m.relaySent.Inc()
}

func (m *Metrics) RelayMessageDropped() {
	m.relayDropped.Inc()
}

func packetIDLabel(id uint8) string {
	if id > 0x20 && id < 0x7F {
		return string(rune(id))
	}
	return "0x" + strconv.FormatUint(uint64(id), 16)
}

// framerCollector turns framer statistics into counters at scrape time.
type framerCollector struct {
	mu      sync.RWMutex
	sources map[string]StatsFunc

	bytes          *prometheus.Desc
	frames         *prometheus.Desc
	checksumErrors *prometheus.Desc
	decodeErrors   *prometheus.Desc
	resyncs        *prometheus.Desc
	discarded      *prometheus.Desc
}

func newFramerCollector() *framerCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "framer", name),
			help,
			[]string{"source"},
			nil,
		)
	}
	return &framerCollector{
		sources:        make(map[string]StatsFunc),
		bytes:          desc("bytes_total", "Bytes fed to the framer."),
		frames:         desc("frames_total", "Frames that passed validation."),
		checksumErrors: desc("checksum_errors_total", "Frames rejected for a checksum mismatch."),
		decodeErrors:   desc("decode_errors_total", "Frames with a valid checksum that failed to decode."),
		resyncs:        desc("resyncs_total", "Times the framer lost frame alignment."),
		discarded:      desc("discarded_bytes_total", "Bytes skipped while resynchronizing."),
	}
}

func (c *framerCollector) add(source string, stats StatsFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[source] = stats
}

func (c *framerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytes
	ch <- c.frames
	ch <- c.checksumErrors
	ch <- c.decodeErrors
	ch <- c.resyncs
	ch <- c.discarded
}

func (c *framerCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for source, stats := range c.sources {
		s := stats()
		counter := func(desc *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), source)
		}
		counter(c.bytes, s.BytesIn)
		counter(c.frames, s.Frames)
		counter(c.checksumErrors, s.ChecksumErrors)
		counter(c.decodeErrors, s.DecodeErrors)
		counter(c.resyncs, s.Resyncs)
		counter(c.discarded, s.Discarded)
	}
}
