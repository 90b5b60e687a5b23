/*
Package session manages the live WebSocket connections on top of the presence core.

This file defines the Hub struct, which tracks every open connection keyed by its
assigned identity, joined or not, and provides the fire-and-forget broadcast fan-out
the presence registry invokes after each mutation.
*/
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
)

// Conn is the hub's view of one connection: an identity plus a non-blocking
// frame queue.
type Conn interface {
	Identity() presence.Identity
	Enqueue(frame []byte) error
}

// Hub tracks all open connections. It implements presence.Notifier, so the
// registry can push snapshots without any transport knowledge.
type Hub struct {
	// mu protects concurrent access to the conns map.
	mu sync.RWMutex

	// conns holds every open connection, keyed by assigned identity.
	conns map[presence.Identity]Conn

	stats *metrics.Collector

	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(stats *metrics.Collector) *Hub {
	return &Hub{
		conns:  make(map[presence.Identity]Conn),
		stats:  stats,
		logger: logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	h.conns[conn.Identity()] = conn
	count := len(h.conns)
	h.mu.Unlock()

	h.stats.RecordConnectionOpened()

	h.logger.Info().
		Str("identity", string(conn.Identity())).
		Int("connections", count).
		Msg("Connection registered.")
}

// Unregister removes the connection for the given identity. Removing an unknown
// identity is a no-op.
func (h *Hub) Unregister(identity presence.Identity) {
	h.mu.Lock()
	_, ok := h.conns[identity]
	if ok {
		delete(h.conns, identity)
	}
	count := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.stats.RecordConnectionClosed()

	h.logger.Info().
		Str("identity", string(identity)).
		Int("connections", count).
		Msg("Connection unregistered.")
}

// Broadcast encodes the event once and enqueues the frame on every open
// connection. Delivery is best-effort: a connection with a full queue misses this
// frame and will catch up on the next full-snapshot push.
func (h *Hub) Broadcast(event string, payload any) {
	frame, err := presence.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", event).
			Msg("Error encoding broadcast frame.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for identity, conn := range h.conns {
		if err := conn.Enqueue(frame); err != nil {
			h.logger.Warn().
				Str("identity", string(identity)).
				Str("event", event).
				Msg("Dropping broadcast frame for slow connection.")
		}
	}
}

// Len returns the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
