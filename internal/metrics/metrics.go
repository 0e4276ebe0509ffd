// Package metrics exposes coordinator state and traffic as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callrelay"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	connections   prometheus.Gauge
	identities    prometheus.Gauge
	rooms         prometheus.Gauge
	calls         prometheus.Gauge
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	transitions   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Live signaling connections.",
		}),
		identities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "identities",
			Help: "User identities bound to a live connection.",
		}),
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms",
			Help: "Rooms with at least one member.",
		}),
		calls: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "calls",
			Help: "Calls that are ringing or accepted.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Inbound events by type.",
		}, []string{"type"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_total",
			Help: "Outbound notifications delivered by type.",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_dropped_total",
			Help: "Outbound notifications dropped by reason.",
		}, []string{"reason"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "call_transitions_total",
			Help: "Call status transitions by resulting status.",
		}, []string{"status"}),
		gatherer: reg,
	}
}

// Sizes holds the registry sizes reported after each operation.
type Sizes struct {
	Connections, Identities, Rooms, Calls int
}

func (m *Metrics) SetSizes(s Sizes) {
	if m == nil {
		return
	}
	m.connections.Set(float64(s.Connections))
	m.identities.Set(float64(s.Identities))
	m.rooms.Set(float64(s.Rooms))
	m.calls.Set(float64(s.Calls))
}

func (m *Metrics) Event(typ string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typ).Inc()
}

func (m *Metrics) Notified(typ string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(typ).Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
