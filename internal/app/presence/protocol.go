/*
Package presence contains the core logic for the real-time presence registry and the
point-to-point signaling relay.

This file defines the wire protocol: event names, typed payloads for every event, and
the Envelope frame that carries them over the WebSocket connection.
*/
package presence

import "encoding/json"

// Event names, server to client.
const (
	// EventUserID delivers the freshly assigned Identity right after connect.
	EventUserID = "userId"

	// EventNameTaken rejects a join whose display name is already in use.
	EventNameTaken = "nameTaken"

	// EventJoinSuccess acknowledges a successful join to the joiner only.
	EventJoinSuccess = "joinSuccess"

	// EventUserUpdate pushes the full snapshot of active records to everyone.
	EventUserUpdate = "userUpdate"

	// EventChatRequest notifies the target that a peer wants to chat.
	EventChatRequest = "chatRequest"
)

// Event names, client to server. EventChatMessage flows in both directions.
const (
	EventJoin           = "join"
	EventUpdateLocation = "updateLocation"
	EventStartChat      = "startChat"
	EventChatMessage    = "chatMessage"
	EventDisconnectUser = "disconnectUser"
)

// Envelope is the single frame format exchanged over a connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeEnvelope marshals an event name and its payload into a wire-ready frame.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// JoinPayload carries the client's join request. Field names match the original
// frontend protocol, so Role travels under the "type" key.
type JoinPayload struct {
	Role      Role     `json:"type"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lng"`
	Delivers  *bool    `json:"delivers,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Avatar    string   `json:"img,omitempty"`
}

// LocationPayload carries a position update. Fields are pointers so a partial
// update merges into the record without clobbering the missing coordinate.
type LocationPayload struct {
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

// StartChatPayload names the identity a client wants to open a chat with.
type StartChatPayload struct {
	Target Identity `json:"target"`
}

// ChatRequestPayload is delivered to the chat target only.
type ChatRequestPayload struct {
	From Identity `json:"from"`
}

// ChatMessageInbound is the client-to-server chat message shape.
type ChatMessageInbound struct {
	To      Identity `json:"to"`
	Message string   `json:"message"`
}

// ChatMessageOutbound is the server-to-target chat message shape.
type ChatMessageOutbound struct {
	From    Identity `json:"from"`
	Message string   `json:"message"`
}
