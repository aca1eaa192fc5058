package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// frame handling outcomes used as the "result" label.
const (
	resultOK        = "ok"
	resultInvalid   = "invalid"
	resultDispatch  = "dispatch_error"
	resultTransport = "transport_error"
	resultRecovered = "recovered"
)

// metrics holds the server's Prometheus collectors. A nil *metrics is a valid
// no-op receiver so the server can run unregistered (tests, embedders that
// bring no registry).
type metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	framesTotal       *prometheus.CounterVec
	broadcastsTotal   prometheus.Counter
	broadcastDrops    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatbridge",
			Name:      "connections_active",
			Help:      "Number of currently open client connections.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "frames_total",
			Help:      "Inbound frames handled, labelled by result.",
		}, []string{"result"}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "broadcasts_total",
			Help:      "Broadcast operations performed.",
		}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "broadcast_drops_total",
			Help:      "Connections pruned after a failed broadcast send.",
		}),
	}

	reg.MustRegister(
		m.connectionsActive,
		m.connectionsTotal,
		m.framesTotal,
		m.broadcastsTotal,
		m.broadcastDrops,
	)
	return m
}

func (m *metrics) connected() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *metrics) disconnected() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *metrics) frame(result string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(result).Inc()
}

func (m *metrics) broadcast(dropped int) {
	if m == nil {
		return
	}
	m.broadcastsTotal.Inc()
	m.broadcastDrops.Add(float64(dropped))
}
