// Package metrics exposes the proxy's Prometheus instrumentation,
// grounded on the client_golang usage conventions in the pack's
// Sentinel-Gate adapter metrics (collector registered once at startup,
// handed to components by reference).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the proxy updates. A nil *Metrics
// is valid and every method becomes a no-op, so components can be built
// without requiring a registry in tests.
type Metrics struct {
	MessagesForwarded *prometheus.CounterVec
	MessagesAcked     *prometheus.CounterVec
	MessagesEnqueued  *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	QueueDropped      *prometheus.CounterVec
	ConnectionsUp     *prometheus.GaugeVec
}

// New creates and registers the proxy's metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hl7proxy",
			Name:      "messages_forwarded_total",
			Help:      "Application records forwarded to the opposite side.",
		}, []string{"side"}),
		MessagesAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hl7proxy",
			Name:      "messages_acked_total",
			Help:      "Locally generated ACKs written back to a sender.",
		}, []string{"side"}),
		MessagesEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hl7proxy",
			Name:      "messages_enqueued_total",
			Help:      "Application records buffered because the destination was disconnected.",
		}, []string{"side"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hl7proxy",
			Name:      "queue_depth",
			Help:      "Current retry queue depth.",
		}, []string{"side"}),
		QueueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hl7proxy",
			Name:      "queue_dropped_total",
			Help:      "Entries evicted from a retry queue to satisfy MaxQueueDepth.",
		}, []string{"side"}),
		ConnectionsUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hl7proxy",
			Name:      "connections_up",
			Help:      "1 if a side currently has a live peer stream, else 0.",
		}, []string{"side"}),
	}

	reg.MustRegister(
		m.MessagesForwarded, m.MessagesAcked, m.MessagesEnqueued,
		m.QueueDepth, m.QueueDropped, m.ConnectionsUp,
	)
	return m
}

func (m *Metrics) forwarded(side string) {
	if m == nil {
		return
	}
	m.MessagesForwarded.WithLabelValues(side).Inc()
}

func (m *Metrics) acked(side string) {
	if m == nil {
		return
	}
	m.MessagesAcked.WithLabelValues(side).Inc()
}

func (m *Metrics) enqueued(side string) {
	if m == nil {
		return
	}
	m.MessagesEnqueued.WithLabelValues(side).Inc()
}

// Forwarded records a forward to side.
func (m *Metrics) Forwarded(side string) { m.forwarded(side) }

// Acked records a locally generated ACK written to side.
func (m *Metrics) Acked(side string) { m.acked(side) }

// Enqueued records a record buffered for side.
func (m *Metrics) Enqueued(side string) { m.enqueued(side) }

// SetQueueDepth publishes the current depth of side's retry queue.
func (m *Metrics) SetQueueDepth(side string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(side).Set(float64(depth))
}

// AddQueueDropped records n entries evicted from side's retry queue.
func (m *Metrics) AddQueueDropped(side string, n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.QueueDropped.WithLabelValues(side).Add(float64(n))
}

// SetConnected publishes whether side currently has a live peer stream.
func (m *Metrics) SetConnected(side string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.ConnectionsUp.WithLabelValues(side).Set(v)
}
