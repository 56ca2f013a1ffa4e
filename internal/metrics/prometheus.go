// Package metrics is the default qcore.StatsCollector implementation,
// grounded on the teacher's metrics package (metrics/tracer.go): a small
// set of Prometheus counters registered against a caller-supplied (or
// default) Registerer, one metric family per event this core reports.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coldwave-io/qcore/internal/protocol"
)

const namespace = "qcore"

// Collector implements qcore.StatsCollector with Prometheus counters.
type Collector struct {
	packetsDropped *prometheus.CounterVec
	acksSent       *prometheus.CounterVec
	migrations     *prometheus.CounterVec
	streamsOpened  *prometheus.CounterVec
	streamsClosed  *prometheus.CounterVec
}

// New creates a Collector registered against the default Prometheus
// registerer.
func New() *Collector {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a Collector registered against registerer,
// tolerating a collector that's already registered (mirrors the teacher's
// NewTracerWithRegisterer, since a process may construct more than one
// qcore.Connection sharing the default registry).
func NewWithRegisterer(registerer prometheus.Registerer) *Collector {
	c := &Collector{
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Packets dropped by the connection core, by reason.",
		}, []string{"reason"}),
		acksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acks_sent_total",
			Help:      "ACK frames queued for sending, by packet-number space.",
		}, []string{"space"}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Peer address migrations observed, split by NAT-rebinding heuristic.",
		}, []string{"nat_rebinding"}),
		streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_opened_total",
			Help:      "Streams opened, by directionality.",
		}, []string{"direction"}),
		streamsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_closed_total",
			Help:      "Streams closed, by directionality.",
		}, []string{"direction"}),
	}

	for _, collector := range []prometheus.Collector{
		c.packetsDropped, c.acksSent, c.migrations, c.streamsOpened, c.streamsClosed,
	} {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return c
}

func (c *Collector) OnPacketDropped(reason string) {
	c.packetsDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) OnAckSent(space protocol.PacketNumberSpace) {
	c.acksSent.WithLabelValues(space.String()).Inc()
}

func (c *Collector) OnMigration(natRebinding bool) {
	label := "false"
	if natRebinding {
		label = "true"
	}
	c.migrations.WithLabelValues(label).Inc()
}

func (c *Collector) OnStreamOpened(dir protocol.StreamDirection) {
	c.streamsOpened.WithLabelValues(dir.String()).Inc()
}

func (c *Collector) OnStreamClosed(dir protocol.StreamDirection) {
	c.streamsClosed.WithLabelValues(dir.String()).Inc()
}
