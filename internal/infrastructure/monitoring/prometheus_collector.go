package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	roomsActive    prometheus.Gauge
	peersConnected prometheus.Gauge
	wsConnections  prometheus.Gauge

	messagesRelayed *prometheus.CounterVec
	messagesDropped prometheus.Counter

	relayLatency prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "playmesh_rooms_active",
			Help: "Number of currently open rooms",
		}),

		peersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "playmesh_peers_connected",
			Help: "Number of seated peers across all rooms",
		}),

		wsConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "playmesh_ws_connections",
			Help: "Number of open signaling WebSocket connections",
		}),

		messagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "playmesh_messages_relayed_total",
			Help: "Total signaling messages accepted for relay",
		}, []string{"type"}),

		messagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "playmesh_messages_dropped_total",
			Help: "Total signaling messages evicted from full mailboxes",
		}),

		relayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "playmesh_relay_latency_seconds",
			Help:    "Time from relay acceptance to mailbox append",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

func (c *PrometheusCollector) RoomOpened()  { c.roomsActive.Inc() }
func (c *PrometheusCollector) RoomClosed()  { c.roomsActive.Dec() }
func (c *PrometheusCollector) PeerJoined()  { c.peersConnected.Inc() }
func (c *PrometheusCollector) PeerLeft()    { c.peersConnected.Dec() }
func (c *PrometheusCollector) WSOpened()    { c.wsConnections.Inc() }
func (c *PrometheusCollector) WSClosed()    { c.wsConnections.Dec() }

func (c *PrometheusCollector) MessageRelayed(messageType string) {
	c.messagesRelayed.WithLabelValues(messageType).Inc()
}

func (c *PrometheusCollector) MessageDropped() {
	c.messagesDropped.Inc()
}

func (c *PrometheusCollector) ObserveRelayLatency(d time.Duration) {
	c.relayLatency.Observe(d.Seconds())
}
