/*
Package presence contains the core logic for the real-time presence registry and the
point-to-point signaling relay.

This file defines the Relay struct, a stateless router for targeted events between two
identities. The server never interprets relayed content and holds no session state;
a chat "session" is purely a convention between the two clients.
*/
package presence

import (
	"github.com/rs/zerolog"

	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
)

// Relay routes chat signaling between identities using the registry's lookup.
// Every operation is a single-step dispatch: if the target is gone the event is
// silently dropped, and the sender is never told the difference between a busy
// target and a departed one.
type Relay struct {
	registry *Registry
	stats    *metrics.Collector
	logger   zerolog.Logger
}

// NewRelay constructs a Relay over the given registry.
func NewRelay(registry *Registry, stats *metrics.Collector) *Relay {
	return &Relay{
		registry: registry,
		stats:    stats,
		logger:   logx.Logger().With().Str("component", "Relay").Logger(),
	}
}

// RequestChat delivers a chatRequest event to the target connection only.
func (s *Relay) RequestChat(from, to Identity) {
	s.deliver(from, to, EventChatRequest, ChatRequestPayload{From: from})
}

// RelayMessage delivers a chatMessage event to the target connection only. The
// message content passes through untouched.
func (s *Relay) RelayMessage(from, to Identity, message string) {
	s.deliver(from, to, EventChatMessage, ChatMessageOutbound{From: from, Message: message})
}

// deliver resolves the target and enqueues the event on its connection. A missing
// target or a full send queue both degrade to a drop, never to an error.
func (s *Relay) deliver(from, to Identity, event string, payload any) {
	peer, ok := s.registry.LookupPeer(to)
	if !ok {
		s.logger.Debug().
			Str("event", event).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Dropping targeted event, target not in registry.")

		s.stats.RecordDroppedRelay()
		return
	}

	if err := peer.Send(event, payload); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event", event).
			Str("to", string(to)).
			Msg("Failed to enqueue targeted event.")

		s.stats.RecordDroppedRelay()
		return
	}

	s.stats.RecordRelayed(event)
}
