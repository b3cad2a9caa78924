// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "warpcall"
const subsystem = "relay"

// Relay holds the relay collectors. A nil *Relay discards every update.
type Relay struct {
	rooms       prometheus.Gauge
	connections prometheus.Gauge
	relayed     *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	events      *prometheus.CounterVec
	dropped     prometheus.Counter
}

// NewRelay creates the relay collectors and registers them with reg.
func NewRelay(reg prometheus.Registerer) (*Relay, error) {
	m := &Relay{
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rooms",
			Help:      "Rooms currently open on the relay.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections",
			Help:      "Websocket connections currently registered.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_relayed_total",
			Help:      "Negotiation messages forwarded between room members.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "join_rejected_total",
			Help:      "Room joins refused, by reason.",
		}, []string{"reason"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Room events delivered to participants.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dropped_total",
			Help:      "Outbound messages dropped because a send queue was full.",
		}),
	}

	for _, c := range []prometheus.Collector{m.rooms, m.connections, m.relayed, m.rejected, m.events, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Relay) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Relay) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Relay) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Relay) Relayed(kind string) {
	if m == nil {
		return
	}
	m.relayed.WithLabelValues(kind).Inc()
}

// JoinRejected counts a refused join. reason is a protocol error code.
func (m *Relay) JoinRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Relay) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Relay) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
