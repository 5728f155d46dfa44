// Package metrics exposes the server's Prometheus gauges and counters:
// connection counts, message rates, ban hits, and broadcast throughput.
// Grounded on presbrey-pkg/irc/server.go's ServerStats (the fields this
// package turns into Prometheus collectors) and on
// presbrey-pkg/echoprom/echoprom.go for the promauto-registered-collector,
// dedicated-registry style (spec.md §4.11/§4.12 domain stack).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is this server's dedicated Prometheus registry, kept separate
// from prometheus.DefaultRegisterer the way echoprom.Registry is, so a
// host process embedding this package never collides with its own
// default-registry collectors.
var Registry = prometheus.NewRegistry()

// Collectors bundles every metric the core updates. A package-level
// struct (rather than package-level vars, which echoprom uses) so tests
// can construct an isolated instance against its own registry.
type Collectors struct {
	ConnectionsCurrent prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	UsersCurrent       prometheus.Gauge
	ChannelsCurrent    prometheus.Gauge
	PeersCurrent       prometheus.Gauge

	MessagesReceived prometheus.Counter
	MessagesSent     *prometheus.CounterVec // by command

	BanHits *prometheus.CounterVec // by kind: G/K/D/X

	BroadcastQueueDepth prometheus.Gauge
	BroadcastLatency    prometheus.Histogram

	StartTime time.Time
}

// New registers and returns the server's metric collectors against reg.
// Pass Registry for production wiring, or a fresh prometheus.NewRegistry()
// in tests to avoid cross-test collector name collisions.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		ConnectionsCurrent: f.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_connections_current",
			Help: "Currently connected client sockets.",
		}),
		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ircd_connections_total",
			Help: "Client sockets accepted since startup.",
		}),
		UsersCurrent: f.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_users_current",
			Help: "Currently registered users, local and remote.",
		}),
		ChannelsCurrent: f.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_channels_current",
			Help: "Currently existing channels.",
		}),
		PeersCurrent: f.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_peers_current",
			Help: "Currently linked peer servers.",
		}),
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "ircd_messages_received_total",
			Help: "Inbound protocol lines parsed since startup.",
		}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_messages_sent_total",
			Help: "Outbound protocol lines sent since startup, by command.",
		}, []string{"command"}),
		BanHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_ban_hits_total",
			Help: "Connections or messages rejected by a ban, by kind.",
		}, []string{"kind"}),
		BroadcastQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_broadcast_queue_depth",
			Help: "Items pending in the broadcast engine's queues.",
		}),
		BroadcastLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ircd_broadcast_delivery_seconds",
			Help:    "Time from Enqueue to delivery for a broadcast item.",
			Buckets: prometheus.DefBuckets,
		}),
		StartTime: time.Now(),
	}
}

// Uptime reports how long this collector set has been running, mirroring
// the teacher's ServerStats.StartTime-derived uptime in webportal.go's
// handleAPIStats.
func (c *Collectors) Uptime() time.Duration {
	return time.Since(c.StartTime)
}

// Handler returns the promhttp handler for this registry's /metrics
// endpoint, grounded on echoprom.startMetricsServer's promhttp.HandlerFor
// call but left for cmd/ircd to mount rather than starting its own
// listener, since the core doesn't own any HTTP server.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
