package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics exposes relay counters to Prometheus. It implements
// services.Observer. Construction takes a registerer so tests can use
// an isolated registry.
type RelayMetrics struct {
	peersConnected       prometheus.Gauge
	registrationsTotal   prometheus.Counter
	messagesForwarded    *prometheus.CounterVec
	messagesQueued       *prometheus.CounterVec
	offlineDelivered     prometheus.Counter
	offlineExpired       prometheus.Counter
	livenessTerminations prometheus.Counter

	registerer prometheus.Registerer
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	factory := promauto.With(reg)
	return &RelayMetrics{
		registerer: reg,

		peersConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peerlink_peers_connected",
			Help: "Number of currently bound peer connections",
		}),

		registrationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_registrations_total",
			Help: "Total number of successful peer registrations",
		}),

		messagesForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_messages_forwarded_total",
			Help: "Envelopes forwarded to a live target, by type",
		}, []string{"type"}),

		messagesQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_messages_queued_total",
			Help: "Envelopes parked in the offline store, by type",
		}, []string{"type"}),

		offlineDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_offline_messages_delivered_total",
			Help: "Queued envelopes delivered on reconnect",
		}),

		offlineExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_offline_messages_expired_total",
			Help: "Queued envelopes evicted by TTL sweep",
		}),

		livenessTerminations: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_liveness_terminations_total",
			Help: "Connections terminated by the liveness supervisor",
		}),
	}
}

// RegisterQueueDepth exports the offline store depth as a gauge
// evaluated at scrape time.
func (m *RelayMetrics) RegisterQueueDepth(depth func() float64) {
	promauto.With(m.registerer).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "peerlink_offline_queue_depth",
		Help: "Total envelopes currently parked in the offline store",
	}, depth)
}

func (m *RelayMetrics) PeerRegistered(deviceType string) {
	m.peersConnected.Inc()
	m.registrationsTotal.Inc()
}

func (m *RelayMetrics) PeerDisconnected() {
	m.peersConnected.Dec()
}

func (m *RelayMetrics) MessageForwarded(msgType string) {
	m.messagesForwarded.WithLabelValues(msgType).Inc()
}

func (m *RelayMetrics) MessageQueued(msgType string) {
	m.messagesQueued.WithLabelValues(msgType).Inc()
}

func (m *RelayMetrics) OfflineDelivered(count int) {
	m.offlineDelivered.Add(float64(count))
}

func (m *RelayMetrics) OfflineExpired(count int) {
	m.offlineExpired.Add(float64(count))
}

func (m *RelayMetrics) ConnectionTerminated() {
	m.livenessTerminations.Inc()
}
