package relay

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roomcast/roomcast/pkg/api"
)

type Metrics struct {
	connections prometheus.Gauge
	rooms       prometheus.Gauge
	relayed     *prometheus.CounterVec
}

var registerOnce sync.Once

// NewMetrics registers the relay collectors with the default
// prometheus registry exposed by the monitoring server.
func NewMetrics() *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomcast",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of live websocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomcast",
			Subsystem: "relay",
			Name:      "rooms",
			Help:      "Number of active rooms.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomcast",
			Subsystem: "relay",
			Name:      "relayed_packets_total",
			Help:      "Relayed packets by type.",
		}, []string{"type"}),
	}
	registerOnce.Do(func() {
		prometheus.MustRegister(m.connections, m.rooms, m.relayed)
	})
	return m
}

func (m *Metrics) Connected()       { m.connections.Inc() }
func (m *Metrics) Disconnected()    { m.connections.Dec() }
func (m *Metrics) Rooms(n int)      { m.rooms.Set(float64(n)) }
func (m *Metrics) Relayed(t api.PT) { m.relayed.WithLabelValues(t.String()).Inc() }
