/*
Package metrics exposes Prometheus instrumentation for the presence and signaling core.

It defines a single Collector holding every gauge and counter the server records,
registered against an explicit prometheus.Registerer so tests can use isolated registries.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector bundles all server metrics.
type Collector struct {
	// Gauges
	connectionsActive prometheus.Gauge
	usersActive       prometheus.Gauge

	// Counters
	joinsTotal         prometheus.Counter
	nameConflictsTotal prometheus.Counter
	broadcastsTotal    prometheus.Counter
	relayedTotal       *prometheus.CounterVec
	droppedRelaysTotal prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crystalmed_connections_active",
			Help: "Number of currently open WebSocket connections",
		}),

		usersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crystalmed_users_active",
			Help: "Number of joined users currently in the presence registry",
		}),

		joinsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystalmed_joins_total",
			Help: "Total number of successful joins",
		}),

		nameConflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystalmed_name_conflicts_total",
			Help: "Total number of joins rejected because the name was taken",
		}),

		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystalmed_snapshot_broadcasts_total",
			Help: "Total number of full-snapshot broadcasts pushed to all connections",
		}),

		relayedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crystalmed_relayed_events_total",
			Help: "Total number of targeted signaling events delivered, by event",
		}, []string{"event"}),

		droppedRelaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crystalmed_dropped_relays_total",
			Help: "Total number of targeted signaling events dropped because the target was gone",
		}),
	}
}

// RecordConnectionOpened increments the open connection gauge.
func (c *Collector) RecordConnectionOpened() {
	c.connectionsActive.Inc()
}

// RecordConnectionClosed decrements the open connection gauge.
func (c *Collector) RecordConnectionClosed() {
	c.connectionsActive.Dec()
}

// RecordJoin counts a successful join and bumps the active user gauge.
func (c *Collector) RecordJoin() {
	c.joinsTotal.Inc()
	c.usersActive.Inc()
}

// RecordNameConflict counts a join rejected with a name conflict.
func (c *Collector) RecordNameConflict() {
	c.nameConflictsTotal.Inc()
}

// RecordRemoval decrements the active user gauge.
func (c *Collector) RecordRemoval() {
	c.usersActive.Dec()
}

// RecordBroadcast counts one full-snapshot broadcast.
func (c *Collector) RecordBroadcast() {
	c.broadcastsTotal.Inc()
}

// RecordRelayed counts one delivered targeted event.
func (c *Collector) RecordRelayed(event string) {
	c.relayedTotal.WithLabelValues(event).Inc()
}

// RecordDroppedRelay counts one targeted event dropped for a missing target.
func (c *Collector) RecordDroppedRelay() {
	c.droppedRelaysTotal.Inc()
}
