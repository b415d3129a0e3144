package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mentorpad"

// Metrics holds the collectors exported at /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	joins            *prometheus.CounterVec
	edits            prometheus.Counter
	solutionMatches  prometheus.Counter
	roomResets       prometheus.Counter
	broadcastDropped prometheus.Counter
	connections      prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Room join attempts by role and result.",
		}, []string{"role", "result"}),
		edits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Accepted code edits.",
		}),
		solutionMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solution_matches_total",
			Help:      "Edits that matched the room solution.",
		}),
		roomResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_resets_total",
			Help:      "Rooms reset after becoming empty.",
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Events dropped because the recipient was slow or gone.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}

	reg.MustRegister(
		m.joins,
		m.edits,
		m.solutionMatches,
		m.roomResets,
		m.broadcastDropped,
		m.connections,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Join(role, result string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(role, result).Inc()
}

func (m *Metrics) Edit() {
	if m == nil {
		return
	}
	m.edits.Inc()
}

func (m *Metrics) SolutionMatched() {
	if m == nil {
		return
	}
	m.solutionMatches.Inc()
}

func (m *Metrics) RoomReset() {
	if m == nil {
		return
	}
	m.roomResets.Inc()
}

func (m *Metrics) BroadcastDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.broadcastDropped.Add(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
