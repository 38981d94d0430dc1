package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/energizer-project/craftflow/internal/protocol"
)

const metricsNamespace = "craftflow"

// Metrics records connection and packet counters in Prometheus. It
// satisfies network.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	packetsReceived   *prometheus.CounterVec
	packetsSent       *prometheus.CounterVec
	bytesReceived     *prometheus.CounterVec
	bytesSent         *prometheus.CounterVec
	unknownPackets    *prometheus.CounterVec
	packetSize        *prometheus.HistogramVec
}

// NewMetrics registers the craftflow collectors plus the Go and process
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Number of registered player connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Total number of connections that completed the handshake",
		}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_received_total",
			Help:      "Packets decoded from clients by state and packet",
		}, []string{"state", "packet"}),

		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_sent_total",
			Help:      "Packets written to clients by state and packet",
		}, []string{"state", "packet"}),

		bytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payload_bytes_received_total",
			Help:      "Uncompressed payload bytes decoded from clients",
		}, []string{"state"}),

		bytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "payload_bytes_sent_total",
			Help:      "Uncompressed payload bytes written to clients",
		}, []string{"state"}),

		unknownPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unknown_packets_total",
			Help:      "Packets skipped because no codec claims their id",
		}, []string{"state"}),

		packetSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "packet_size_bytes",
			Help:      "Uncompressed payload size by direction",
			Buckets:   []float64{8, 32, 128, 512, 2048, 8192, 32768, 131072, 524288, 2097152},
		}, []string{"direction"}),
	}
}

// Registry returns the registry to expose on /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ConnectionOpened() {
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() { m.connectionsActive.Dec() }

func (m *Metrics) PacketReceived(state protocol.State, name string, size int) {
	m.packetsReceived.WithLabelValues(state.String(), name).Inc()
	m.bytesReceived.WithLabelValues(state.String()).Add(float64(size))
	m.packetSize.WithLabelValues(protocol.ServerBound.String()).Observe(float64(size))
}

func (m *Metrics) PacketSent(state protocol.State, name string, size int) {
	m.packetsSent.WithLabelValues(state.String(), name).Inc()
	m.bytesSent.WithLabelValues(state.String()).Add(float64(size))
	m.packetSize.WithLabelValues(protocol.ClientBound.String()).Observe(float64(size))
}

func (m *Metrics) UnknownPacket(state protocol.State) {
	m.unknownPackets.WithLabelValues(state.String()).Inc()
}
