/*
Package session manages the live WebSocket connections on top of the presence core.

This file defines the Client struct, representing one active WebSocket connection.
It runs the read/write pumps, dispatches inbound protocol events to the presence
registry and the signaling relay, and funnels every disconnect path into one removal.
*/
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

// Client represents one active WebSocket connection and its assigned identity.
// It satisfies both presence.Peer (targeted delivery) and Conn (hub fan-out).
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// id is the server-assigned identity, fixed for the connection lifetime.
	id presence.Identity

	registry *presence.Registry
	relay    *presence.Relay

	// send queues frames waiting to be written to the connection.
	send chan []byte

	// mu guards closed; Enqueue and close both touch the send channel.
	mu     sync.Mutex
	closed bool

	logger zerolog.Logger
}

// NewClient constructs a Client for a freshly upgraded connection.
func NewClient(hub *Hub, wsConn *websocket.Conn, id presence.Identity, registry *presence.Registry, relay *presence.Relay) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("identity", string(id)).
		Logger()

	return &Client{
		hub:      hub,
		conn:     wsConn,
		id:       id,
		registry: registry,
		relay:    relay,
		send:     make(chan []byte, sendQueueSize),
		logger:   clientLogger,
	}
}

// Identity returns the connection's assigned identity.
func (c *Client) Identity() presence.Identity {
	return c.id
}

// Enqueue places a wire-ready frame on the outbound queue without blocking.
// A full queue or a closed connection drops the frame and reports an error.
func (c *Client) Enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame.")
		return fmt.Errorf("client send queue full")
	}
}

// Send encodes an event with its payload and enqueues it for this connection only.
func (c *Client) Send(event string, payload any) error {
	frame, err := presence.EncodeEnvelope(event, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error encoding frame for client.")
		return err
	}

	return c.Enqueue(frame)
}

// ReadPump reads frames from the WebSocket connection until it closes.
// It handles heartbeats (Pong), event dispatch, and cleanup on connection loss.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.processInboundFrame(frame)
	}
}

// cleanupOnDisconnect funnels every disconnect path, voluntary or not, into the
// single removal sequence: out of the hub, out of the registry, socket closed.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.hub.Unregister(c.id)
	c.registry.Remove(c.id)

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one envelope and dispatches it by event name.
// Malformed frames and unknown events are logged and dropped; the protocol has no
// error reply for them.
func (c *Client) processInboundFrame(frame []byte) {
	var env presence.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).
			Bytes("frame", frame).
			Msg("Client sent invalid JSON")
		return
	}

	switch env.Event {
	case presence.EventJoin:
		c.handleJoin(env.Data)

	case presence.EventUpdateLocation:
		c.handleUpdateLocation(env.Data)

	case presence.EventStartChat:
		c.handleStartChat(env.Data)

	case presence.EventChatMessage:
		c.handleChatMessage(env.Data)

	case presence.EventDisconnectUser:
		// Voluntary logout: the record goes, the connection stays.
		c.registry.Remove(c.id)

	default:
		c.logger.Warn().Str("event", env.Event).Msg("Client sent unsupported event")
	}
}

// handleJoin validates the join payload and attempts the registry insert. A taken
// name is reported to this connection only; nothing else ever is.
func (c *Client) handleJoin(data json.RawMessage) {
	var payload presence.JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid join payload")
		return
	}

	if payload.Name == "" || !payload.Role.Valid() {
		c.logger.Warn().
			Str("name", payload.Name).
			Str("role", string(payload.Role)).
			Msg("Client sent join with missing name or invalid role")
		return
	}

	if err := c.registry.Join(c, payload); err != nil {
		c.Send(presence.EventNameTaken, nil)
		return
	}

	c.Send(presence.EventJoinSuccess, nil)
}

func (c *Client) handleUpdateLocation(data json.RawMessage) {
	var payload presence.LocationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid location payload")
		return
	}

	c.registry.UpdateLocation(c.id, payload)
}

func (c *Client) handleStartChat(data json.RawMessage) {
	var payload presence.StartChatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid startChat payload")
		return
	}

	c.relay.RequestChat(c.id, payload.Target)
}

func (c *Client) handleChatMessage(data json.RawMessage) {
	var payload presence.ChatMessageInbound
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid chatMessage payload")
		return
	}

	c.relay.RelayMessage(c.id, payload.To, payload.Message)
}

// WritePump writes queued frames to the WebSocket connection and keeps the
// heartbeat alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send queue. Returns true if
// the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping to maintain the heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
